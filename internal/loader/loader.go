// Package loader builds experiments from pprof profiles. Each profile is
// one thread (rank) of the run: the calling context tree is the union of
// their call stacks, stored values are summed over threads, and the
// per-thread values are kept as thread-level data.
package loader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/pprof/profile"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	cterrors "github.com/coral-mesh/calltree/internal/errors"
	"github.com/coral-mesh/calltree/internal/experiment"
	"github.com/coral-mesh/calltree/internal/threaddata"
)

// Input is one profile to load.
type Input struct {
	// Label names the thread the profile was recorded on.
	Label string
	// Open returns the encoded profile.
	Open func() (io.ReadCloser, error)
}

// Files returns inputs reading pprof files, labelled by base name.
func Files(paths ...string) []Input {
	inputs := make([]Input, len(paths))
	for i, p := range paths {
		p := p
		inputs[i] = Input{
			Label: filepath.Base(p),
			Open:  func() (io.ReadCloser, error) { return os.Open(p) },
		}
	}
	return inputs
}

// Options configure Load.
type Options struct {
	// Name of the experiment, the first label when empty.
	Name string
	// Parallelism bounds concurrent profile decoding (0 = one per input).
	Parallelism int
	Logger      zerolog.Logger
	// Experiment options applied after the tree is built.
	Experiment []experiment.Option
}

// Result is a loaded, not yet postprocessed experiment and its thread data.
type Result struct {
	Experiment *experiment.Experiment
	Threads    *threaddata.Memory
}

// Load decodes every input and builds the experiment. Inputs are decoded
// concurrently but merged in order, so the tree does not depend on timing.
func Load(ctx context.Context, inputs []Input, opts Options) (*Result, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no profiles to load")
	}
	profiles := make([]*profile.Profile, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	if opts.Parallelism > 0 {
		g.SetLimit(opts.Parallelism)
	}
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := decode(in, opts.Logger)
			if err != nil {
				return fmt.Errorf("load %s: %w", in.Label, err)
			}
			profiles[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	labels := make([]string, len(inputs))
	for i, in := range inputs {
		labels[i] = in.Label
	}
	name := opts.Name
	if name == "" {
		name = labels[0]
	}

	b, err := newBuilder(profiles, labels, opts.Logger)
	if err != nil {
		return nil, err
	}
	return b.build(name, opts.Experiment)
}

func decode(in Input, logger zerolog.Logger) (*profile.Profile, error) {
	rc, err := in.Open()
	if err != nil {
		return nil, err
	}
	defer cterrors.DeferClose(logger, rc, "failed to close profile")
	p, err := profile.Parse(rc)
	if err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	return p, nil
}
