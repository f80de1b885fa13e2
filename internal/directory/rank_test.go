package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	"github.com/and161185/authentic-caller/internal/model"
)

func names(cs []model.Contact) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

func TestRank_PrefixFirstThenStoreOrder(t *testing.T) {
	t.Parallel()

	cs := []model.Contact{
		{ID: 1, Name: "Mary Alice"},
		{ID: 2, Name: "alicia keys"},
		{ID: 3, Name: "Bob Malice"},
		{ID: 4, Name: "Alice Smith"},
		{ID: 5, Name: "ALICE Cooper"},
	}
	Rank(cs, "Alic", language.Und)

	assert.Equal(t, []string{"ALICE Cooper", "Alice Smith", "alicia keys", "Mary Alice", "Bob Malice"}, names(cs))
}

func TestRank_QueryIsTrimmedAndCaseFolded(t *testing.T) {
	t.Parallel()

	cs := []model.Contact{
		{ID: 1, Name: "Xavier Zed"},
		{ID: 2, Name: "zed"},
	}
	Rank(cs, "  ZED ", language.English)

	assert.Equal(t, []string{"zed", "Xavier Zed"}, names(cs))
}

func TestRank_Empty(t *testing.T) {
	t.Parallel()

	var cs []model.Contact
	Rank(cs, "a", language.Und)
	assert.Empty(t, cs)
}
