package storage

import (
	"context"
	"errors"

	"soulsdex/internal/model"
)

// Storage defines a sink for journal records and operation results.
type Storage interface {
	PutLogBatch(ctx context.Context, logs []model.LogRecord) error
	PutResultBatch(ctx context.Context, results []model.OpResult) error
}

// Multi fans every batch out to each sink in order.
type Multi []Storage

func (m Multi) PutLogBatch(ctx context.Context, logs []model.LogRecord) error {
	var errs []error
	for _, sink := range m {
		if err := sink.PutLogBatch(ctx, logs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) PutResultBatch(ctx context.Context, results []model.OpResult) error {
	var errs []error
	for _, sink := range m {
		if err := sink.PutResultBatch(ctx, results); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
