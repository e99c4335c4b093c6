package store

import (
	"context"
	"testing"
	"time"

	"notifyhub/internal/common"
	"notifyhub/internal/domain/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestMemoryStore_QueryAudience(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	insert := func(title string, role notification.TargetRole, user *int64, offset time.Duration) {
		_, err := s.Insert(ctx, &notification.InboxRecord{
			Title:        title,
			Type:         notification.TypeSystem,
			Importance:   notification.ImportanceNormal,
			TargetRole:   role,
			TargetUserID: user,
			CreatedAt:    base.Add(offset),
		})
		require.NoError(t, err)
	}
	insert("direct", notification.RoleClient, ptr(int64(7)), time.Minute)
	insert("other user", notification.RoleClient, ptr(int64(8)), 2*time.Minute)
	insert("clients", notification.RoleClient, nil, 3*time.Minute)
	insert("everyone", notification.RoleAll, nil, 4*time.Minute)
	insert("freelancers", notification.RoleFreelancer, nil, 5*time.Minute)

	recs, err := s.Query(ctx, notification.InboxQuery{UserID: 7, Role: notification.RoleClient})
	require.NoError(t, err)

	var titles []string
	for _, r := range recs {
		titles = append(titles, r.Title)
	}
	assert.Equal(t, []string{"everyone", "clients", "direct"}, titles)
}

func TestMemoryStore_QueryFiltersAndPaging(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i := range 5 {
		imp := notification.ImportanceNormal
		if i%2 == 0 {
			imp = notification.ImportanceHigh
		}
		_, err := s.Insert(ctx, &notification.InboxRecord{
			Title:      "n",
			Type:       notification.TypeProject,
			Importance: imp,
			TargetRole: notification.RoleAll,
			CreatedAt:  time.Unix(int64(i), 0),
		})
		require.NoError(t, err)
	}

	high, err := s.Query(ctx, notification.InboxQuery{UserID: 1, Role: notification.RoleAll, Importance: notification.ImportanceHigh})
	require.NoError(t, err)
	assert.Len(t, high, 3)

	paged, err := s.Query(ctx, notification.InboxQuery{UserID: 1, Role: notification.RoleAll, Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 2)
	assert.Equal(t, int64(4), paged[0].ID)
	assert.Equal(t, int64(3), paged[1].ID)

	none, err := s.Query(ctx, notification.InboxQuery{UserID: 1, Role: notification.RoleAll, Type: notification.TypeOrder})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStore_UpdateReadState(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	id, err := s.Insert(ctx, &notification.InboxRecord{Title: "t", TargetRole: notification.RoleAll})
	require.NoError(t, err)

	first := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	require.NoError(t, s.UpdateReadState(ctx, id, 5, first))
	require.NoError(t, s.UpdateReadState(ctx, id, 5, second))

	recs, err := s.Query(ctx, notification.InboxQuery{UserID: 5, Role: notification.RoleAll})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, map[string]string{"5": second.Format(time.RFC3339Nano)}, recs[0].ReadState)

	err = s.UpdateReadState(ctx, 999, 5, first)
	var notFound *common.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestMemoryStore_QueryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	id, err := s.Insert(ctx, &notification.InboxRecord{Title: "t", TargetRole: notification.RoleAll})
	require.NoError(t, err)

	recs, err := s.Query(ctx, notification.InboxQuery{UserID: 1, Role: notification.RoleAll})
	require.NoError(t, err)
	recs[0].ReadState["1"] = "tampered"

	again, err := s.Query(ctx, notification.InboxQuery{UserID: 1, Role: notification.RoleAll})
	require.NoError(t, err)
	assert.Empty(t, again[0].ReadState)
	assert.Equal(t, id, again[0].ID)
}

func TestMemoryStore_LookupContact(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.PutContact(notification.Contact{UserID: 3, Username: "wang", Phone: "13800000000"})

	c, err := s.LookupContact(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "13800000000", c.Phone)

	missing, err := s.LookupContact(ctx, 4)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRowConversion(t *testing.T) {
	created := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	expires := created.Add(168 * time.Hour)
	rec := &notification.InboxRecord{
		Title:        "标题",
		Content:      "内容",
		TitleEN:      "Title",
		Type:         notification.TypeProject,
		Importance:   notification.ImportanceHigh,
		TargetRole:   notification.RoleClient,
		TargetUserID: ptr(int64(11)),
		ActionURL:    "/client/order/1/milestones",
		ExpiresAt:    &expires,
		CreatedAt:    created,
	}

	row := recordToRow(rec)
	assert.Equal(t, "project", row.NotificationType)
	assert.Equal(t, map[string]string{}, row.IsRead)
	assert.Nil(t, row.ContentEN)
	require.NotNil(t, row.ExpiryDate)

	back := rowToRecord(&row)
	assert.Equal(t, rec.Title, back.Title)
	assert.Equal(t, rec.TitleEN, back.TitleEN)
	assert.Empty(t, back.ContentEN)
	assert.Equal(t, rec.TargetUserID, back.TargetUserID)
	assert.True(t, expires.Equal(*back.ExpiresAt))
	assert.True(t, created.Equal(back.CreatedAt))
}

func TestParseTimestamp(t *testing.T) {
	ts, ok := parseTimestamp("2026-02-03T04:05:06.123456")
	require.True(t, ok)
	assert.Equal(t, 123456000, ts.Nanosecond())

	_, ok = parseTimestamp("yesterday")
	assert.False(t, ok)
}
