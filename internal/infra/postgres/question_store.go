package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"
	"medy-coop-service/internal/domain"
)

// QuestionStore samples and loads questions from Postgres.
type QuestionStore struct {
	pool *pgxpool.Pool
}

func NewQuestionStore(pool *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{pool: pool}
}

// SampleIDs draws count matching ids in random order.
func (s *QuestionStore) SampleIDs(ctx context.Context, filter domain.Filters, count int) ([]string, error) {
	filter = filter.Normalize()
	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Speciality != "" {
		add("lower(trim(speciality)) = $%d", filter.Speciality)
	}
	if filter.University != "" {
		add("trim(university) = $%d", filter.University)
	}
	if filter.StudyYear != nil {
		add("study_year = $%d", int32(*filter.StudyYear))
	}
	if len(filter.UnitIDs) > 0 {
		add("unit_id = ANY($%d)", filter.UnitIDs)
	}
	if len(filter.ModuleIDs) > 0 {
		add("module_id = ANY($%d)", filter.ModuleIDs)
	}
	if len(filter.CourseIDs) > 0 {
		add("course_id = ANY($%d)", filter.CourseIDs)
	}

	query := `SELECT id FROM questions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, count)
	query += fmt.Sprintf(` ORDER BY random() LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sample questions: %w", err)
	}
	defer rows.Close()
	ids := make([]string, 0, count)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan question id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetByIDs loads questions with their unit, module and course names, in the order of ids.
func (s *QuestionStore) GetByIDs(ctx context.Context, ids []string) ([]domain.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT q.id, q.prompt, q.options, q.correct_answer, q.speciality, q.study_year, q.university,
		        q.unit_id, q.module_id, q.course_id,
		        COALESCE(u.name, ''), COALESCE(m.name, ''), COALESCE(c.name, '')
		   FROM questions q
		   LEFT JOIN categories u ON u.id = q.unit_id
		   LEFT JOIN categories m ON m.id = q.module_id
		   LEFT JOIN categories c ON c.id = q.course_id
		  WHERE q.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.Question, len(ids))
	for rows.Next() {
		var (
			q         domain.Question
			options   []byte
			correct   []int32
			studyYear *int32
		)
		if err := rows.Scan(&q.ID, &q.Prompt, &options, &correct, &q.Speciality, &studyYear, &q.University,
			&q.UnitID, &q.ModuleID, &q.CourseID, &q.UnitName, &q.ModuleName, &q.CourseName); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
		q.CorrectAnswer = make([]int, len(correct))
		for i, c := range correct {
			q.CorrectAnswer[i] = int(c)
		}
		if studyYear != nil {
			y := int(*studyYear)
			q.StudyYear = &y
		}
		byID[q.ID] = q
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.Question, 0, len(byID))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}
