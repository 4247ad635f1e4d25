package redis

import (
	"context"
	"testing"
	"time"
)

func TestLocker_ExcludesSecondHolder(t *testing.T) {
	client, mr := startRedis(t)

	locker := NewLocker(client, time.Minute)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "clearance:rec-1")
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if !mr.Exists("chequer:lock:clearance:rec-1") {
		t.Fatal("expected lock key in redis")
	}

	if _, err := locker.Acquire(ctx, "clearance:rec-1"); err == nil {
		t.Fatal("expected second acquire to fail while lock is held")
	}

	if _, err := locker.Acquire(ctx, "clearance:rec-2"); err != nil {
		t.Fatalf("unrelated key should be free: %v", err)
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	again, err := locker.Acquire(ctx, "clearance:rec-1")
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	_ = again(ctx)
}

func TestLocker_ReleaseAfterExpiry(t *testing.T) {
	client, mr := startRedis(t)

	locker := NewLocker(client, time.Second)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "clearance:rec-1")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	mr.FastForward(5 * time.Second)

	if err := release(ctx); err == nil {
		t.Fatal("expected release of an expired lock to report an error")
	}
}
