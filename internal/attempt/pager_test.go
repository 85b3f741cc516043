package attempt

import (
	"testing"

	"exam-attempt-service/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestPagerTotalPages(t *testing.T) {
	cases := []struct {
		total, size, pages int
	}{
		{0, 7, 0},
		{1, 7, 1},
		{7, 7, 1},
		{8, 7, 2},
		{15, 7, 3},
		{21, 7, 3},
		{10, 3, 4},
		{5, 0, 1}, // falls back to the default size
	}
	for _, tc := range cases {
		p := NewPager(tc.total, tc.size)
		require.Equal(t, tc.pages, p.TotalPages(), "total=%d size=%d", tc.total, tc.size)
	}
}

func TestPagerPagesReconstructList(t *testing.T) {
	for _, size := range []int{1, 2, 3, 7, 10, 40} {
		for _, total := range []int{0, 1, 6, 7, 15, 33} {
			questions := makeQuestions(total, 100)
			p := NewPager(total, size)
			ledger := NewLedger()

			var joined []domain.Question
			for n := 0; n < p.TotalPages(); n++ {
				p.GoToPage(n)
				joined = append(joined, p.Project(questions, ledger)...)
			}
			require.Equal(t, ids(questions), ids(joined), "total=%d size=%d", total, size)
		}
	}
}

func TestPagerClampsAtBoundaries(t *testing.T) {
	p := NewPager(15, 7)

	require.Equal(t, 0, p.Prev())
	require.Equal(t, 1, p.Next())
	require.Equal(t, 2, p.Next())
	require.Equal(t, 2, p.Next(), "next on last page is a no-op")

	require.Equal(t, 2, p.GoToPage(99))
	require.Equal(t, 0, p.GoToPage(-4))
	require.Equal(t, 0, p.Prev(), "prev on first page is a no-op")
}

func TestPagerShortLastPage(t *testing.T) {
	p := NewPager(15, 7)
	questions := makeQuestions(15, 1)
	ledger := NewLedger()

	sizes := []int{}
	for n := 0; n < p.TotalPages(); n++ {
		p.GoToPage(n)
		sizes = append(sizes, len(p.Project(questions, ledger)))
	}
	require.Equal(t, []int{7, 7, 1}, sizes)
}

func TestPagerProjectDoesNotMutateShuffled(t *testing.T) {
	questions := makeQuestions(5, 1)
	ledger := NewLedger()
	ledger.Record(2, "B")

	p := NewPager(len(questions), 7)
	page := p.Project(questions, ledger)

	require.Equal(t, "B", page[1].GivenAnswer)
	require.Equal(t, "", page[0].GivenAnswer)
	for _, q := range questions {
		require.Equal(t, "", q.GivenAnswer)
	}
}

func TestPagerAnswerRoundTrip(t *testing.T) {
	questions := makeQuestions(15, 1)
	ledger := NewLedger()
	p := NewPager(len(questions), 7)

	p.GoToPage(1)
	onPage := p.Project(questions, ledger)
	ledger.Record(onPage[3].ID, "C")

	p.Next()
	p.Prev()
	again := p.Project(questions, ledger)
	require.Equal(t, "C", again[3].GivenAnswer)
}
