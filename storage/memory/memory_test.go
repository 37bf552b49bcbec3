package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/Tsukikage7/command-scheduler/job"
	"github.com/Tsukikage7/command-scheduler/job/jobtest"
)

type MemoryStoreTestSuite struct {
	jobtest.StoreSuite
}

func (s *MemoryStoreTestSuite) SetupTest() {
	s.Store = New()
}

func TestMemoryStoreTestSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreTestSuite))
}

func TestStore_Closed(t *testing.T) {
	s := New()
	assert.NoError(t, s.Close())

	_, err := s.Get(context.Background(), 1)
	assert.ErrorIs(t, err, job.ErrStoreClosed)
	assert.ErrorIs(t, s.Create(context.Background(), job.New("a", "b", "@daily")), job.ErrStoreClosed)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := New()
	j := job.New("a", "b", "@daily")
	assert.NoError(t, s.Create(context.Background(), j))

	got, _ := s.Get(context.Background(), j.ID)
	got.Locked = true

	again, _ := s.Get(context.Background(), j.ID)
	assert.False(t, again.Locked)
}
