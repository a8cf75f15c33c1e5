package crawl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScoreLocation(t *testing.T) {
	cases := []struct {
		name      string
		requested string
		candidate string
		want      int
	}{
		{"exact after folding", "Đống Đa", "dong da", 100},
		{"same words reordered", "Đống Đa Hà Nội", "ha noi dong da", 95},
		{"two shared words", "Đống Đa", "Quận Đống Đa", 80},
		{"three shared words", "bán nhà quận đống đa", "nhà đất đống đa", 85},
		{"one shared word", "Đống Đa", "Đà Nẵng Đa Phước", 20},
		{"nothing shared", "Đống Đa", "Hồ Chí Minh", 0},
		{"empty candidate", "Đống Đa", "", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, scoreLocation(tc.requested, tc.candidate))
		})
	}
}

func TestBestLocationLink(t *testing.T) {
	links := []Link{
		{Text: "Hồ Chí Minh", Href: "/hcm"},
		{Text: "Quận Đống Đa", Href: "/dong-da"},
		{Text: "Phường Đống Đa", Href: "/dong-da-hue"},
	}
	best, ok := bestLocationLink("Đống Đa", links)
	require.True(t, ok)
	// Both candidates score 80; the earlier one wins the tie.
	require.Equal(t, "/dong-da", best.Href)

	_, ok = bestLocationLink("Cầu Giấy", links)
	require.False(t, ok)
}

func TestIsGenericLocationURL(t *testing.T) {
	generic := DefaultGenericPaths
	require.True(t, isGenericLocationURL("https://batdongsan.com.vn/", generic))
	require.True(t, isGenericLocationURL("https://batdongsan.com.vn/nha-dat-ban", generic))
	require.True(t, isGenericLocationURL("https://batdongsan.com.vn/nha-dat-cho-thue/", generic))
	require.False(t, isGenericLocationURL("https://batdongsan.com.vn/nha-dat-ban-dong-da", generic))
	require.False(t, isGenericLocationURL("https://batdongsan.com.vn/ban-nha-rieng-quan-dong-da", generic))
}

func TestPollUntil(t *testing.T) {
	calls := 0
	ok := pollUntil(context.Background(), time.Millisecond, 5, func() bool {
		calls++
		return calls == 3
	})
	require.True(t, ok)
	require.Equal(t, 3, calls)

	calls = 0
	ok = pollUntil(context.Background(), time.Millisecond, 4, func() bool {
		calls++
		return false
	})
	require.False(t, ok)
	require.Equal(t, 4, calls)
}

func TestPollUntilStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	ok := pollUntil(ctx, time.Hour, 10, func() bool {
		calls++
		return true
	})
	require.False(t, ok)
	require.Zero(t, calls)
}
