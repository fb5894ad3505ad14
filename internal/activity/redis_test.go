package activity_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/skirmish/internal/activity"
	"github.com/cory-johannsen/skirmish/internal/testutil"
)

func TestRedisFeed_CapsAndOrders(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	rc := testutil.NewRedisContainer(t)
	f := activity.NewRedisFeed(rc.Client, 2)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		require.NoError(t, f.Append(ctx, activity.Item{GameID: "g1", Message: fmt.Sprint(i)}))
	}
	got, err := f.Recent(ctx, "g1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].Message)
	assert.Equal(t, "3", got[1].Message)
}
