package redisclient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const testDay = "2024-05-01"

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestDayLockHoldsKeyWhileRunning(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewRedisDayLocker(client, 5*time.Second)
	doctorID := uuid.New()
	key := lockKey(doctorID, testDay)

	ran := false
	err := locker.WithDoctorDayLock(context.Background(), doctorID, testDay, func(ctx context.Context) error {
		ran = true
		if !mr.Exists(key) {
			t.Error("lock key missing while held")
		}
		if ttl := mr.TTL(key); ttl <= 0 || ttl > 5*time.Second {
			t.Errorf("lock ttl = %s", ttl)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithDoctorDayLock: %v", err)
	}
	if !ran {
		t.Fatal("fn did not run")
	}
	if mr.Exists(key) {
		t.Error("lock key left behind after fn returned")
	}
}

func TestDayLockWaitsForHolder(t *testing.T) {
	_, client := newTestRedis(t)
	locker := NewRedisDayLocker(client, 5*time.Second)
	doctorID := uuid.New()

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, s)
	}

	held := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- locker.WithDoctorDayLock(context.Background(), doctorID, testDay, func(ctx context.Context) error {
			close(held)
			<-release
			record("first")
			return nil
		})
	}()
	<-held

	secondDone := make(chan error, 1)
	go func() {
		secondDone <- locker.WithDoctorDayLock(context.Background(), doctorID, testDay, func(ctx context.Context) error {
			record("second")
			return nil
		})
	}()

	select {
	case err := <-secondDone:
		t.Fatalf("second caller returned while the lock was held: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first: %v", err)
	}
	select {
	case err := <-secondDone:
		if err != nil {
			t.Fatalf("second: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second caller never got the lock")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("order = %v", order)
	}
}

func TestDayLockOtherDaysDoNotContend(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewRedisDayLocker(client, 5*time.Second)
	doctorID := uuid.New()

	if err := mr.Set(lockKey(doctorID, testDay), "someone-else"); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := locker.WithDoctorDayLock(ctx, doctorID, "2024-05-02", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("next day: %v", err)
	}
	if err := locker.WithDoctorDayLock(ctx, uuid.New(), testDay, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("other doctor: %v", err)
	}
}

func TestDayLockGivesUp(t *testing.T) {
	mr, client := newTestRedis(t)
	doctorID := uuid.New()
	key := lockKey(doctorID, testDay)
	if err := mr.Set(key, "someone-else"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		locker Locker
		ctx    func() (context.Context, context.CancelFunc)
	}{
		{
			name:   "caller deadline",
			locker: NewRedisDayLocker(client, 5*time.Second),
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 60*time.Millisecond)
			},
		},
		{
			name:   "wait exhausted",
			locker: &redisDayLocker{client: client, ttl: 5 * time.Second, wait: 60 * time.Millisecond},
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithCancel(context.Background())
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := tt.ctx()
			defer cancel()

			ran := false
			err := tt.locker.WithDoctorDayLock(ctx, doctorID, testDay, func(context.Context) error {
				ran = true
				return nil
			})
			if !errors.Is(err, ErrLockNotAcquired) {
				t.Fatalf("err = %v, want ErrLockNotAcquired", err)
			}
			if ran {
				t.Error("fn ran without the lock")
			}
			if got, _ := mr.Get(key); got != "someone-else" {
				t.Errorf("holder's key = %q, want it untouched", got)
			}
		})
	}
}

func TestDayLockReleaseOnlyByHolder(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewRedisDayLocker(client, 5*time.Second)
	doctorID := uuid.New()
	key := lockKey(doctorID, testDay)

	err := locker.WithDoctorDayLock(context.Background(), doctorID, testDay, func(ctx context.Context) error {
		// our key expired and someone else took the lock
		return mr.Set(key, "next-holder")
	})
	if err != nil {
		t.Fatalf("WithDoctorDayLock: %v", err)
	}
	if got, _ := mr.Get(key); got != "next-holder" {
		t.Fatalf("key = %q, the next holder's lock was released", got)
	}

	rl := locker.(*redisDayLocker)
	if err := rl.release(context.Background(), key, "stale-token"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if !mr.Exists(key) {
		t.Fatal("a stale token released the lock")
	}
	if err := rl.release(context.Background(), key, "next-holder"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists(key) {
		t.Fatal("the holder could not release its own lock")
	}
}

func TestDayLockReleasedAfterCancel(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewRedisDayLocker(client, 5*time.Second)
	doctorID := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	err := locker.WithDoctorDayLock(ctx, doctorID, testDay, func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if mr.Exists(lockKey(doctorID, testDay)) {
		t.Fatal("cancelled caller left the lock held")
	}

	if err := locker.WithDoctorDayLock(context.Background(), doctorID, testDay, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("relock after cancel: %v", err)
	}
}

func TestDayLockRedisDown(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewRedisDayLocker(client, 5*time.Second)
	mr.Close()

	ran := false
	err := locker.WithDoctorDayLock(context.Background(), uuid.New(), testDay, func(context.Context) error {
		ran = true
		return nil
	})
	if !errors.Is(err, ErrLockUnavailable) {
		t.Fatalf("err = %v, want ErrLockUnavailable", err)
	}
	if ran {
		t.Error("fn ran although the lock could not be requested")
	}
}
