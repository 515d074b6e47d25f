// internal/sheets/parse_test.go
package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubforge/fantrack/internal/store"
)

func TestParseTable(t *testing.T) {
	t.Run("parses header and data rows", func(t *testing.T) {
		values := [][]string{
			{"Name", "Day", "Total Fans", "Daily"},
			{"kita", "1", "1,000", "1000"},
			{"kita", "2", "2,500", "1500"},
		}

		obs, err := ParseTable("club/data", values)
		require.NoError(t, err)
		require.Len(t, obs, 2)

		assert.Equal(t, "kita", obs[0].Member)
		assert.Equal(t, 1, obs[0].Day)
		require.NotNil(t, obs[0].Fans)
		assert.Equal(t, int64(1000), *obs[0].Fans)
		require.NotNil(t, obs[1].Fans)
		assert.Equal(t, int64(2500), *obs[1].Fans, "thousands separators are tolerated")
	})

	t.Run("skips the current-period marker row", func(t *testing.T) {
		values := [][]string{
			{"Current Period: 2026-08"},
			{"Name", "Day", "Total Fans"},
			{"ryo", "1", "42"},
		}

		obs, err := ParseTable("club/data", values)
		require.NoError(t, err)
		require.Len(t, obs, 1)
		assert.Equal(t, "ryo", obs[0].Member)
	})

	t.Run("empty cells mean unobserved, not zero", func(t *testing.T) {
		values := [][]string{
			{"Name", "Day", "Total Fans"},
			{"a", "1", ""},
			{"a", "2", "nan"},
			{"a", "3", "0"},
		}

		obs, err := ParseTable("club/data", values)
		require.NoError(t, err)
		require.Len(t, obs, 3)

		assert.Nil(t, obs[0].Fans)
		assert.Nil(t, obs[1].Fans)
		require.NotNil(t, obs[2].Fans)
		assert.Equal(t, int64(0), *obs[2].Fans)
	})

	t.Run("float renderings are truncated to integers", func(t *testing.T) {
		values := [][]string{
			{"Name", "Day", "Total Fans"},
			{"a", "1", "1234.0"},
		}

		obs, err := ParseTable("club/data", values)
		require.NoError(t, err)
		require.NotNil(t, obs[0].Fans)
		assert.Equal(t, int64(1234), *obs[0].Fans)
	})

	t.Run("rows with bad day indexes are dropped", func(t *testing.T) {
		values := [][]string{
			{"Name", "Day", "Total Fans"},
			{"a", "zero", "10"},
			{"a", "-1", "10"},
			{"a", "2", "10"},
		}

		obs, err := ParseTable("club/data", values)
		require.NoError(t, err)
		require.Len(t, obs, 1)
		assert.Equal(t, 2, obs[0].Day)
	})

	t.Run("missing required column is a data integrity error", func(t *testing.T) {
		values := [][]string{
			{"Name", "Total Fans"},
			{"a", "10"},
		}

		_, err := ParseTable("club/data", values)
		var die *store.DataIntegrityError
		require.ErrorAs(t, err, &die)
		assert.Contains(t, die.Reason, "required column")
	})

	t.Run("empty table is a data integrity error", func(t *testing.T) {
		_, err := ParseTable("club/data", nil)
		var die *store.DataIntegrityError
		require.ErrorAs(t, err, &die)
	})

	t.Run("header with no data rows is a data integrity error", func(t *testing.T) {
		values := [][]string{{"Name", "Day", "Total Fans"}}
		_, err := ParseTable("club/data", values)
		var die *store.DataIntegrityError
		require.ErrorAs(t, err, &die)
	})
}
