package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajkrsingh9/Gagan-Dhristi/internal/model"
)

// TaskRepository stores monitoring tasks in Postgres for deployments that
// run the scheduler out of process.
type TaskRepository struct {
	pool *pgxpool.Pool
}

func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

func (r *TaskRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *TaskRepository) List(ctx context.Context) ([]model.MonitoringTask, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT aoi_id, geojson, monitoring_interval_days, threshold,
			last_checked_date, email_recipient, detection_methods, created_at
		FROM monitoring_tasks ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []model.MonitoringTask{}
	for rows.Next() {
		var (
			t         model.MonitoringTask
			geojson   []byte
			threshold float64
			checked   *time.Time
			methods   []string
		)
		if err := rows.Scan(
			&t.AOIID, &geojson, &t.MonitoringIntervalDays, &threshold,
			&checked, &t.EmailRecipient, &methods, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		t.GeoJSON = json.RawMessage(geojson)
		t.Threshold = model.Fraction(threshold)
		if checked != nil {
			d := checked.Format(model.DateLayout)
			t.LastCheckedDate = &d
		}
		for _, m := range methods {
			t.DetectionMethods = append(t.DetectionMethods, model.DetectionMethod(m))
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepository) Append(ctx context.Context, t model.MonitoringTask) error {
	methods := make([]string, len(t.DetectionMethods))
	for i, m := range t.DetectionMethods {
		methods[i] = string(m)
	}
	var checked *time.Time
	if t.LastCheckedDate != nil {
		d, err := time.Parse(model.DateLayout, *t.LastCheckedDate)
		if err != nil {
			return fmt.Errorf("last checked date: %w", err)
		}
		checked = &d
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO monitoring_tasks
			(aoi_id, geojson, monitoring_interval_days, threshold,
			 last_checked_date, email_recipient, detection_methods, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.AOIID, []byte(t.GeoJSON), t.MonitoringIntervalDays, float64(t.Threshold),
		checked, t.EmailRecipient, methods, t.CreatedAt,
	)
	return err
}

func (r *TaskRepository) Clear(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM monitoring_tasks`)
	return err
}

func (r *TaskRepository) MarkChecked(ctx context.Context, aoiID, date string) error {
	d, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return fmt.Errorf("checked date: %w", err)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE monitoring_tasks SET last_checked_date = $2 WHERE aoi_id = $1`,
		aoiID, d,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
