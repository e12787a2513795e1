package registry

import (
	"context"

	"github.com/arthur-debert/arbor/pkg/errors"
	"github.com/arthur-debert/arbor/pkg/ideal"
	"github.com/arthur-debert/arbor/pkg/logging"
	"github.com/rs/zerolog"
)

// Resolver answers version range queries against an Index.
type Resolver struct {
	index  *Index
	logger zerolog.Logger
}

// NewResolver creates a resolver over index.
func NewResolver(index *Index) *Resolver {
	return &Resolver{index: index, logger: logging.GetLogger("registry.resolver")}
}

// Resolve returns the highest published version of name inside spec.
func (r *Resolver) Resolve(ctx context.Context, name, spec string) (ideal.Manifest, error) {
	if err := ctx.Err(); err != nil {
		return ideal.Manifest{}, err
	}
	if !r.index.Has(name) {
		return ideal.Manifest{}, errors.Newf(errors.ErrNotFound, "package %s is not published", name).
			WithDetail("package", name)
	}
	if _, err := ParseRange(spec); err != nil {
		return ideal.Manifest{}, err
	}

	versions := r.index.Versions(name)
	version, ok := MaxSatisfying(versions, spec)
	if !ok {
		return ideal.Manifest{}, errors.Newf(errors.ErrNotFound, "no version of %s matches %q", name, spec).
			WithDetail("package", name).
			WithDetail("range", spec).
			WithDetail("available", versions)
	}

	p, err := r.index.Get(name, version)
	if err != nil {
		return ideal.Manifest{}, err
	}
	r.logger.Debug().
		Str("package", name).
		Str("range", spec).
		Str("version", version).
		Msg("Resolved package")
	return p.Manifest, nil
}

// Satisfies reports whether version matches spec.
func (r *Resolver) Satisfies(version, spec string) bool {
	return Satisfies(version, spec)
}
