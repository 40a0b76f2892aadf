package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
)

func TestParsePartition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    domain.Partition
		wantErr bool
	}{
		{"category:5", domain.CategoryPartition(5), false},
		{"owner:7", domain.OwnerPartition(7), false},
		{"owner-offline:7", domain.OwnerOfflinePartition(7), false},
		{"user-favorite:3", domain.UserFavoritePartition(3), false},
		{"all-active", domain.AllActivePartition(), false},
		{" user-registry ", domain.UserRegistryPartition(), false},
		{"category", domain.Partition{}, true},
		{"category:0", domain.Partition{}, true},
		{"category:x", domain.Partition{}, true},
		{"all-active:1", domain.Partition{}, true},
		{"bogus:1", domain.Partition{}, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := domain.ParsePartition(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, domain.ErrInvalidPartition))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) domain.Partition {
	t.Helper()
	p, err := domain.ParsePartition(s)
	require.NoError(t, err)
	return p
}

func TestMemberships(t *testing.T) {
	t.Parallel()

	cat := int64(5)
	active := domain.GoodsState{ID: 1, OwnerID: 9, CategoryID: &cat, Status: domain.StatusOnSale}
	require.ElementsMatch(t, []domain.Partition{
		domain.AllActivePartition(), domain.OwnerPartition(9), domain.CategoryPartition(5),
	}, active.Memberships())

	noCategory := domain.GoodsState{ID: 1, OwnerID: 9, Status: domain.StatusOnSale}
	require.ElementsMatch(t, []domain.Partition{
		domain.AllActivePartition(), domain.OwnerPartition(9),
	}, noCategory.Memberships())

	offline := domain.GoodsState{ID: 1, OwnerID: 9, CategoryID: &cat, Status: domain.StatusOffShelf}
	require.Equal(t, []domain.Partition{domain.OwnerOfflinePartition(9)}, offline.Memberships())

	for _, st := range []domain.GoodsStatus{domain.StatusSold, domain.StatusRenting, domain.StatusUserDeleted, domain.StatusSystemBlocked} {
		require.Empty(t, domain.GoodsState{ID: 1, OwnerID: 9, Status: st}.Memberships(), "status %d", st)
	}

	stale := domain.StalePartitions(active.Memberships(), offline.Memberships())
	require.ElementsMatch(t, []domain.Partition{
		domain.AllActivePartition(), domain.OwnerPartition(9), domain.CategoryPartition(5),
	}, stale)
}

func TestBrief(t *testing.T) {
	t.Parallel()

	require.Equal(t, "короткое", domain.Brief("короткое"))
	long := "абвгдеёжзийклмнопрстуфхцчшщ"
	got := domain.Brief(long)
	require.Equal(t, []rune(long)[:domain.BriefLimit], []rune(got)[:domain.BriefLimit])
	require.Equal(t, "...", string([]rune(got)[domain.BriefLimit:]))
}
