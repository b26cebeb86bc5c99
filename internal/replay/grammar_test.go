package replay

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbook/internal/book"
)

func TestParse_GoodTillCancelCross(t *testing.T) {
	fixture := strings.Join([]string{
		"A B GoodTillCancel 100 10 1",
		"A S GoodTillCancel 100 10 2",
		"R 0 0 0",
	}, "\n")

	script, err := Parse(strings.NewReader(fixture))
	require.NoError(t, err)
	require.Len(t, script.Instructions, 2)
	assert.Equal(t, Expectation{Total: 0, BidLevels: 0, AskLevels: 0}, script.Expect)

	ob := book.New()
	defer ob.Close()

	_, matched := Run(ob, script)
	assert.True(t, matched)
}

func TestParse_ModifyAndCancel(t *testing.T) {
	fixture := strings.Join([]string{
		"A B GoodTillCancel 100 10 1",
		"A B GoodTillCancel 100 10 2",
		"M 1 B 100 10",
		"C 2",
		"R 1 1 0",
	}, "\n")

	script, err := Parse(strings.NewReader(fixture))
	require.NoError(t, err)

	ob := book.New()
	defer ob.Close()

	_, matched := Run(ob, script)
	assert.True(t, matched)
}

func TestParse_MarketOrder(t *testing.T) {
	fixture := strings.Join([]string{
		"A S GoodTillCancel 100 5 1",
		"A S GoodTillCancel 110 5 2",
		"A B Market 0 3 3",
		"R 2 0 2",
	}, "\n")

	script, err := Parse(strings.NewReader(fixture))
	require.NoError(t, err)

	ob := book.New()
	defer ob.Close()

	trades, matched := Run(ob, script)
	assert.True(t, matched)
	require.Len(t, trades, 3)
	assert.Empty(t, trades[0])
	assert.Empty(t, trades[1])
	require.Len(t, trades[2], 1)
}

func TestParse_RejectsMissingResultLine(t *testing.T) {
	_, err := Parse(strings.NewReader("A B GoodTillCancel 100 10 1"))
	assert.Error(t, err)
}

func TestParse_RejectsContentAfterResultLine(t *testing.T) {
	fixture := "R 0 0 0\nA B GoodTillCancel 100 10 1"
	_, err := Parse(strings.NewReader(fixture))
	assert.Error(t, err)
}

func TestParse_RejectsUnknownAction(t *testing.T) {
	_, err := Parse(strings.NewReader("X 1 2 3\nR 0 0 0"))
	assert.Error(t, err)
}
