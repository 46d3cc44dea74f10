package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"slack-roaster/internal/ratelimit"
)

func mustNewCounterStore(t *testing.T, db *fakeDynamo) *CounterStore {
	t.Helper()
	s, err := NewCounterStore(db, "counter-table")
	require.NoError(t, err)
	return s
}

func TestNewCounterStore_Validates(t *testing.T) {
	_, err := NewCounterStore(nil, "counter-table")
	require.Error(t, err)

	_, err = NewCounterStore(&fakeDynamo{}, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be empty")
}

func TestIncrementIfBelow_BuildsConditionalUpdate(t *testing.T) {
	db := &fakeDynamo{}
	s := mustNewCounterStore(t, db)

	count, err := s.IncrementIfBelow(context.Background(), "U1", "2024-01-01", 2)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.Len(t, db.updateInputs, 1)
	in := db.updateInputs[0]
	require.Equal(t, "counter-table", *in.TableName)
	require.Equal(t, "SET pic_count = if_not_exists(pic_count, :start) + :inc", *in.UpdateExpression)
	require.Equal(t, "attribute_not_exists(pic_count) OR pic_count < :limit", *in.ConditionExpression)
	require.Equal(t, "2", in.ExpressionAttributeValues[":limit"].(*types.AttributeValueMemberN).Value)
	require.Equal(t, "2024-01-01", in.Key["date"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, types.ReturnValueUpdatedNew, in.ReturnValues)
}

func TestIncrementIfBelow_ConditionFailureIsQuotaExceeded(t *testing.T) {
	db := &fakeDynamo{counters: map[string]int{"U1|2024-01-01": 2}}
	s := mustNewCounterStore(t, db)

	_, err := s.IncrementIfBelow(context.Background(), "U1", "2024-01-01", 2)
	require.ErrorIs(t, err, ErrQuotaExceeded)
	require.Equal(t, 2, db.counter("U1", "2024-01-01"))
}

func TestIncrementIfBelow_OtherErrorsAreNotQuotaExceeded(t *testing.T) {
	db := &fakeDynamo{updateErr: errors.New("AccessDeniedException")}
	s := mustNewCounterStore(t, db)

	_, err := s.IncrementIfBelow(context.Background(), "U1", "2024-01-01", 2)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrQuotaExceeded)
	require.Contains(t, err.Error(), "AccessDeniedException")
}

func TestIncrementIfBelow_InvalidInput(t *testing.T) {
	s := mustNewCounterStore(t, &fakeDynamo{})

	_, err := s.IncrementIfBelow(context.Background(), "", "2024-01-01", 2)
	require.Error(t, err)

	_, err = s.IncrementIfBelow(context.Background(), "U1", "2024-01-01", 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid quota")
}

func TestCounterStore_WithLimiter_EndToEnd(t *testing.T) {
	db := &fakeDynamo{}
	s := mustNewCounterStore(t, db)
	day := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)
	l, err := ratelimit.New(s, 2, ratelimit.WithClock(func() time.Time { return day }))
	require.NoError(t, err)
	ctx := context.Background()

	want := []ratelimit.Decision{ratelimit.Admitted, ratelimit.Admitted, ratelimit.Denied}
	for i, w := range want {
		d, err := l.TryConsume(ctx, "U1")
		require.NoError(t, err, "call %d", i+1)
		require.Equal(t, w, d, "call %d", i+1)
	}
	require.Equal(t, 2, db.counter("U1", "2024-01-01"))

	day = day.Add(2 * time.Minute)
	d, err := l.TryConsume(ctx, "U1")
	require.NoError(t, err)
	require.Equal(t, ratelimit.Admitted, d)
	require.Equal(t, 1, db.counter("U1", "2024-01-02"))
}

func TestCounterStore_WithLimiter_Concurrent(t *testing.T) {
	const calls = 40
	db := &fakeDynamo{}
	s := mustNewCounterStore(t, db)
	l, err := ratelimit.New(s, 2, ratelimit.WithClock(func() time.Time {
		return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	}))
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.TryConsume(context.Background(), "U1")
			if err == nil && d == ratelimit.Admitted {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 2, admitted)
	require.Equal(t, 2, db.counter("U1", "2024-01-01"))
	require.Len(t, db.updateInputs, calls)
}

func TestCounterStore_WithLimiter_StoreFailureFailsClosed(t *testing.T) {
	db := &fakeDynamo{updateErr: errors.New("ThrottlingException")}
	s := mustNewCounterStore(t, db)
	l, err := ratelimit.New(s, 2)
	require.NoError(t, err)

	d, err := l.TryConsume(context.Background(), "U1")
	require.Error(t, err)
	require.Equal(t, ratelimit.Unavailable, d)
}
