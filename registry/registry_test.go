package registry_test

import (
	"context"
	"testing"

	"github.com/das-labor/panopticon-sub002/absint/kset"
	"github.com/das-labor/panopticon-sub002/arch"
	"github.com/das-labor/panopticon-sub002/arch/testarch"
	"github.com/das-labor/panopticon-sub002/registry"
	"github.com/das-labor/panopticon-sub002/rreil"
	"github.com/stretchr/testify/require"
)

func TestRegistry_PutGetDelete(t *testing.T) {
	reg := registry.New()
	require.Equal(t, 0, reg.Count())

	fn := rreil.NewFunction("f")
	reg.Put(fn)
	require.Equal(t, 1, reg.Count())

	got, ok := reg.Get(fn.ID)
	require.True(t, ok)
	require.Same(t, fn, got)

	reg.Delete(fn.ID)
	require.Equal(t, 0, reg.Count())
	_, ok = reg.Get(fn.ID)
	require.False(t, ok)
}

func TestWorkerPool_Run_PublishesEveryIndependentJob(t *testing.T) {
	in := rreil.NewInterner()
	a := testarch.New(in)

	reg := registry.New()
	pool := registry.NewWorkerPool[testarch.Config, kset.Element](reg)

	jobs := []registry.Job[testarch.Config, kset.Element]{
		{
			Name:      "branch",
			Entry:     0,
			Arch:      a,
			Region:    arch.ByteRegion(testarch.Branch),
			Domain:    kset.Domain{},
			Enumerate: kset.Enumerate,
		},
		{
			Name:      "ssa-diamond",
			Entry:     0,
			Arch:      a,
			Region:    arch.ByteRegion(testarch.SSADiamond),
			Domain:    kset.Domain{},
			Enumerate: kset.Enumerate,
		},
		{
			Name:      "indirect-resolution",
			Entry:     0,
			Arch:      a,
			Region:    arch.ByteRegion(testarch.IndirectResolution),
			Domain:    kset.Domain{},
			Enumerate: kset.Enumerate,
		},
	}

	err := pool.Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Equal(t, len(jobs), reg.Count())
}
