// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package editor

import (
	"context"

	"golang.org/x/sync/errgroup"

	"pitchdeck/internal/models"
)

// imageOutcome is the settled result of one slide image call.
type imageOutcome struct {
	url string
	err error
}

// renderAll generates n slide images with brief, at most workers at a time.
// Every call settles on its own: a failure is recorded in its outcome and
// never cancels the others.
func renderAll(ctx context.Context, ai AI, brief *models.VisualBrief, workers, n int, slide func(i int) (string, []string)) []imageOutcome {
	outcomes := make([]imageOutcome, n)

	var eg errgroup.Group
	eg.SetLimit(workers)
	for i := range n {
		title, content := slide(i)
		eg.Go(func() error {
			url, err := ai.GenerateSlideImage(ctx, title, content, brief)
			outcomes[i] = imageOutcome{url: url, err: err}
			return nil
		})
	}
	eg.Wait()

	return outcomes
}
