package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/garnizeh/feedback/pkg/models"
)

const feedbackColumns = `id, name, email, rating, comment, "timestamp", ip_address, user_agent`

func (r *Repo) GetFeedback(ctx context.Context) ([]models.Feedback, error) {
	out := []models.Feedback{}
	if err := r.conn.Select(ctx, &out, `SELECT `+feedbackColumns+` FROM feedback ORDER BY "timestamp" DESC, id ASC`); err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	return out, nil
}

func (r *Repo) GetFeedbackByID(ctx context.Context, id int64) (*models.Feedback, error) {
	var f models.Feedback
	if err := r.conn.Get(ctx, &f, `SELECT `+feedbackColumns+` FROM feedback WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get feedback %d: %w", id, err)
	}
	return &f, nil
}

func (r *Repo) CreateFeedback(ctx context.Context, in models.FeedbackInput, ipAddress, userAgent *string) (*models.Feedback, error) {
	f := models.Feedback{
		Name:      in.Name,
		Email:     in.EmailOrNil(),
		Rating:    in.Rating,
		Comment:   in.Comment,
		Timestamp: r.stamp(),
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}

	row := r.conn.QueryRow(ctx, `INSERT INTO feedback (name, email, rating, comment, "timestamp", ip_address, user_agent) VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		f.Name, f.Email, f.Rating, f.Comment, f.Timestamp, f.IPAddress, f.UserAgent)
	if err := row.Scan(&f.ID); err != nil {
		return nil, fmt.Errorf("insert feedback: %w", err)
	}

	r.logger.Debug("feedback created", slog.Int64("id", f.ID))
	return &f, nil
}

func (r *Repo) UpdateFeedback(ctx context.Context, id int64, patch models.FeedbackPatch) (*models.Feedback, error) {
	if patch.IsEmpty() {
		return r.GetFeedbackByID(ctx, id)
	}

	var sets []string
	var args []any
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Email != nil {
		sets = append(sets, "email = ?")
		if *patch.Email == "" {
			args = append(args, nil)
		} else {
			args = append(args, *patch.Email)
		}
	}
	if patch.Rating != nil {
		sets = append(sets, "rating = ?")
		args = append(args, *patch.Rating)
	}
	if patch.Comment != nil {
		sets = append(sets, "comment = ?")
		args = append(args, *patch.Comment)
	}
	args = append(args, id)

	res, err := r.conn.Exec(ctx, `UPDATE feedback SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update feedback %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update feedback %d: %w", id, err)
	}
	if n == 0 {
		return nil, nil
	}

	return r.GetFeedbackByID(ctx, id)
}

func (r *Repo) DeleteFeedback(ctx context.Context, id int64) (bool, error) {
	res, err := r.conn.Exec(ctx, `DELETE FROM feedback WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete feedback %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete feedback %d: %w", id, err)
	}
	return n > 0, nil
}
