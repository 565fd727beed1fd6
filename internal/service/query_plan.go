package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/logger"
)

// QueryStep is one read in a QueryPlan. Fetch stores its result itself, usually
// into a variable captured by the closure; Fallback installs defaults when an
// optional step fails.
type QueryStep struct {
	Table    string
	Filter   string
	Required bool
	Fetch    func(ctx context.Context) error
	Fallback func()
}

// QueryStage groups steps that do not depend on each other.
type QueryStage []QueryStep

// QueryPlan is an ordered list of stages. A stage may read what earlier stages stored.
type QueryPlan struct {
	Name   string
	Stages []QueryStage
}

// QueryRunner executes plans: stages in order, steps of a stage concurrently.
// A required step failing aborts the plan; an optional step failing degrades to its fallback.
type QueryRunner struct {
	logger  *zap.Logger
	metrics *MetricsService
}

// NewQueryRunner constructs a QueryRunner.
func NewQueryRunner(logger *zap.Logger, metrics *MetricsService) *QueryRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryRunner{logger: logger, metrics: metrics}
}

// Run executes plan. Errors are typed: NOT_FOUND when a required step matched no
// row, INTERNAL_ERROR otherwise. Context cancellation is returned unwrapped.
func (r *QueryRunner) Run(ctx context.Context, plan QueryPlan) error {
	log := logger.WithContext(ctx, r.logger).With(zap.String("plan", plan.Name))

	for _, stage := range plan.Stages {
		if err := r.runStage(ctx, log, plan.Name, stage); err != nil {
			return err
		}
	}
	return nil
}

func (r *QueryRunner) runStage(ctx context.Context, log *zap.Logger, planName string, stage QueryStage) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, step := range stage {
		step := step
		g.Go(func() error {
			start := time.Now()
			err := step.Fetch(gctx)
			r.metrics.ObserveDBQuery(planName+"_"+step.Table, time.Since(start))
			if err == nil {
				return nil
			}
			if step.Required {
				return requiredStepError(step, err)
			}

			fields := []zap.Field{zap.String("table", step.Table), zap.String("filter", step.Filter)}
			if errors.Is(err, sql.ErrNoRows) {
				log.Debug("optional row missing, using defaults", fields...)
			} else if !errors.Is(err, context.Canceled) {
				log.Warn("optional query failed, using defaults", append(fields, zap.Error(err))...)
			}
			if step.Fallback != nil {
				step.Fallback()
			}
			return nil
		})
	}
	return g.Wait()
}

func requiredStepError(step QueryStep, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, fmt.Sprintf("%s not found", step.Table))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to load %s", step.Table))
	}
}
