package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/bigear-ai/bigear/pkg/memory"
	"github.com/bigear-ai/bigear/pkg/memory/mock"
)

func TestPool_AcquireRelease(t *testing.T) {
	created := 0
	pool, err := memory.NewPool(context.Background(), func(context.Context) (memory.VectorStore, error) {
		created++
		return mock.New(), nil
	}, 2)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Close()

	if created != 2 {
		t.Fatalf("eager clients: got %d, want 2", created)
	}

	c1, release1, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if c1 == nil {
		t.Fatal("nil client")
	}
	release1()

	// Released client is reusable; no new client is created.
	_, release2, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	release2()
	if created != 2 {
		t.Errorf("clients created: got %d, want 2", created)
	}
}

func TestPool_ExhaustionCreatesEphemeral(t *testing.T) {
	created := 0
	pool, err := memory.NewPool(context.Background(), func(context.Context) (memory.VectorStore, error) {
		created++
		return mock.New(), nil
	}, 1, memory.WithAcquireTimeout(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Close()

	// Hold the only pooled client.
	_, releasePooled, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire pooled: %v", err)
	}
	defer releasePooled()

	client, release, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire ephemeral: %v", err)
	}
	if created != 2 {
		t.Errorf("expected an ephemeral client to be created, total %d", created)
	}

	// Releasing the ephemeral closes it rather than pooling it.
	eph := client.(*mock.Store)
	release()
	if !eph.Closed() {
		t.Error("ephemeral client was not closed on release")
	}
}

func TestPool_AcquireHonorsContext(t *testing.T) {
	pool, err := memory.NewPool(context.Background(), func(context.Context) (memory.VectorStore, error) {
		return mock.New(), nil
	}, 1, memory.WithAcquireTimeout(time.Minute))
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Close()

	_, release, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, _, err := pool.Acquire(ctx); err == nil {
		t.Fatal("expected context error on exhausted pool, got nil")
	}
}
