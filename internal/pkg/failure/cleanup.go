package failure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Step is one named action of a best-effort release.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Cleanup runs every step in order regardless of earlier failures. Failures are
// logged and joined into the returned error, which callers may ignore.
func Cleanup(ctx context.Context, logger *slog.Logger, steps ...Step) error {
	if logger == nil {
		logger = slog.Default()
	}
	var errs []error
	for _, step := range steps {
		if step.Run == nil {
			continue
		}
		if err := runStep(ctx, step); err != nil {
			logger.Warn("Cleanup step failed, continuing", "step", step.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
		}
	}
	return errors.Join(errs...)
}

func runStep(ctx context.Context, step Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return step.Run(ctx)
}
