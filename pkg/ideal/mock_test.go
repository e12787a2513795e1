package ideal_test

import (
	"context"

	"github.com/arthur-debert/arbor/pkg/ideal"
	"github.com/stretchr/testify/mock"
)

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, name, spec string) (ideal.Manifest, error) {
	args := m.Called(ctx, name, spec)
	return args.Get(0).(ideal.Manifest), args.Error(1)
}

func (m *mockResolver) Satisfies(version, spec string) bool {
	args := m.Called(version, spec)
	return args.Bool(0)
}
