package dataset

import (
	"fmt"
	"math"
	"testing"

	"surveylab/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func surveyTable() *Table {
	cols := []string{"VAR1", "VAR2", "Yvar_USE_AI_Work", "Generation", "Country"}
	rows := []Record{
		{"VAR1": "1", "VAR2": "2", "Yvar_USE_AI_Work": "3", "Generation": "GenZ", "Country": "ES"},
		{"VAR1": "2", "VAR2": "1", "Yvar_USE_AI_Work": "4", "Generation": "Boomer", "Country": "FR"},
		{"VAR1": "3", "VAR2": "", "Yvar_USE_AI_Work": "5", "Generation": "GenZ", "Country": "ES"},
		{"VAR1": "4", "VAR2": "5", "Yvar_USE_AI_Work": "x", "Generation": "Millennial", "Country": "IT"},
		{"VAR1": "5", "VAR2": "3", "Yvar_USE_AI_Work": "7", "Generation": "", "Country": "1"},
		{"VAR1": "6", "VAR2": "4", "Yvar_USE_AI_Work": "8", "Generation": "Boomer", "Country": "1.0"},
	}
	return NewTable(cols, rows)
}

func TestFilter_RemovesExcludedValues(t *testing.T) {
	tbl := surveyTable()

	filtered, err := Filter(tbl, "Country", []string{"ES", "1"})
	require.NoError(t, err)

	assert.Equal(t, 2, filtered.RowCount())
	for i := range filtered.Rows {
		v := filtered.Value(i, "Country")
		assert.NotEqual(t, "ES", v)
		assert.NotEqual(t, 1.0, ParseFloat(v), "numeric match should exclude 1.0 too")
	}
	assert.Equal(t, 6, tbl.RowCount(), "input table must not be mutated")
}

func TestFilter_NoOpWithoutArguments(t *testing.T) {
	tbl := surveyTable()

	out, err := Filter(tbl, "", []string{"ES"})
	require.NoError(t, err)
	assert.Same(t, tbl, out)

	out, err = Filter(tbl, "Country", nil)
	require.NoError(t, err)
	assert.Same(t, tbl, out)
}

func TestFilter_MissingColumnAborts(t *testing.T) {
	_, err := Filter(surveyTable(), "Region", []string{"North"})
	require.Error(t, err)
	assert.Equal(t, errors.CodeMissingColumn, errors.GetCode(err))
}

func TestPartition_CoversAllRowsDisjointly(t *testing.T) {
	tbl := surveyTable()

	for _, order := range []SegmentOrder{OrderSorted, OrderFirstSeen} {
		segments, err := Partition(tbl, PartitionOptions{Enabled: true, Column: "Generation", Order: order})
		require.NoError(t, err)

		seen := make(map[string]int)
		total := 0
		for _, seg := range segments {
			for _, row := range seg.Table.Rows {
				key := fmt.Sprintf("%p", row)
				seen[key]++
				label := row["Generation"]
				if label == "" {
					label = MissingSegmentLabel
				}
				assert.Equal(t, seg.Label, label)
			}
			total += seg.Table.RowCount()
		}
		assert.Equal(t, tbl.RowCount(), total)
		for key, n := range seen {
			assert.Equal(t, 1, n, "row %s appears in more than one segment", key)
		}
	}
}

func TestPartition_Order(t *testing.T) {
	tbl := surveyTable()

	sorted, err := Partition(tbl, PartitionOptions{Enabled: true, Column: "Generation", Order: OrderSorted})
	require.NoError(t, err)
	assert.Equal(t, []string{"(missing)", "Boomer", "GenZ", "Millennial"}, Labels(sorted))

	firstSeen, err := Partition(tbl, PartitionOptions{Enabled: true, Column: "Generation", Order: OrderFirstSeen})
	require.NoError(t, err)
	assert.Equal(t, []string{"GenZ", "Boomer", "Millennial", "(missing)"}, Labels(firstSeen))
}

func TestPartition_BlankAndLiteralMissingStaySeparate(t *testing.T) {
	tbl := NewTable([]string{"Generation", "VAR1"}, []Record{
		{"Generation": "", "VAR1": "1"},
		{"Generation": MissingSegmentLabel, "VAR1": "2"},
		{"Generation": "Boomer", "VAR1": "3"},
	})

	segments, err := Partition(tbl, PartitionOptions{Enabled: true, Column: "Generation", Order: OrderSorted})
	require.NoError(t, err)
	require.Len(t, segments, 3)
	assert.Equal(t, []string{"(missing)", "(missing) (blank)", "Boomer"}, Labels(segments))
	for _, seg := range segments {
		assert.Equal(t, 1, seg.Table.RowCount(), seg.Label)
	}
	assert.Equal(t, "2", segments[0].Table.Rows[0]["VAR1"])
	assert.Equal(t, "1", segments[1].Table.Rows[0]["VAR1"])
}

func TestPartition_DisabledYieldsEntireDataset(t *testing.T) {
	tbl := surveyTable()

	segments, err := Partition(tbl, PartitionOptions{Enabled: false, Column: "DoesNotExist"})
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, EntireDatasetLabel, segments[0].Label)
	assert.Equal(t, tbl.RowCount(), segments[0].Table.RowCount())
}

func TestPartition_MissingColumn(t *testing.T) {
	_, err := Partition(surveyTable(), PartitionOptions{Enabled: true, Column: "Region"})
	require.Error(t, err)
	assert.Equal(t, errors.CodeMissingColumn, errors.GetCode(err))
}

func TestParseSegmentOrder(t *testing.T) {
	o, err := ParseSegmentOrder("")
	require.NoError(t, err)
	assert.Equal(t, OrderSorted, o)

	o, err = ParseSegmentOrder("first-seen")
	require.NoError(t, err)
	assert.Equal(t, OrderFirstSeen, o)

	_, err = ParseSegmentOrder("random")
	assert.Error(t, err)
}

func TestNumericMatrix_ListwiseDeletion(t *testing.T) {
	m, err := surveyTable().NumericMatrix([]string{"Yvar_USE_AI_Work", "VAR1", "VAR2"})
	require.NoError(t, err)

	assert.Equal(t, 4, m.RowCount())
	assert.Equal(t, 2, m.Dropped)
	assert.Equal(t, []float64{1, 2, 5, 6}, m.Column(1))

	_, err = surveyTable().NumericMatrix([]string{"VAR9"})
	assert.Equal(t, errors.CodeMissingColumn, errors.GetCode(err))
}

func TestDescribe(t *testing.T) {
	s := Describe(surveyTable(), "VAR2")

	assert.Equal(t, 5, s.Count)
	assert.Equal(t, 1, s.Missing)
	assert.InDelta(t, 3.0, s.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(2.5), s.StdDev, 1e-12)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 5.0, s.Max)
	assert.False(t, s.IsConstant())

	empty := Describe(surveyTable(), "Generation")
	assert.Equal(t, 0, empty.Count)
	assert.True(t, math.IsNaN(empty.Mean))
}
