package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/sales-etl/internal/extract"
	"github.com/sells-group/sales-etl/internal/metrics"
	"github.com/sells-group/sales-etl/internal/model"
	"github.com/sells-group/sales-etl/internal/store"
	storemocks "github.com/sells-group/sales-etl/internal/store/mocks"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const header = "OrderId,OrderItemId,QuantityOrdered,ItemPrice,PromotionDiscount\n"

// writeSources writes the two regional files and returns them as sources.
func writeSources(t *testing.T, a, b string) []extract.Source {
	t.Helper()
	dir := t.TempDir()
	pa := filepath.Join(dir, "region_a_sales.csv")
	pb := filepath.Join(dir, "region_b_sales.csv")
	require.NoError(t, os.WriteFile(pa, []byte(header+a), 0o644))
	require.NoError(t, os.WriteFile(pb, []byte(header+b), 0o644))
	return []extract.Source{
		{Path: pa, Region: model.RegionA},
		{Path: pb, Region: model.RegionB},
	}
}

func workedExample(t *testing.T) []extract.Source {
	return writeSources(t,
		"1,100,2,10.0,1.0\n",
		"1,200,5,1.0,0\n2,201,1,3.0,5.0\n",
	)
}

func newSQLite(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "sales_data.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPipeline_Run_WorkedExample(t *testing.T) {
	ctx := context.Background()
	st := newSQLite(t)
	rec := metrics.New()

	res, err := New(st, workedExample(t), rec).Run(ctx)
	require.NoError(t, err)

	_, uuidErr := uuid.Parse(res.Run.ID)
	assert.NoError(t, uuidErr)
	assert.Equal(t, model.RunStatusComplete, res.Run.Status)
	require.Len(t, res.Run.Phases, 5)
	for i, name := range []string{PhaseExtract, PhaseTransform, PhaseSchema, PhaseLoad, PhaseValidate} {
		assert.Equal(t, name, res.Run.Phases[i].Name)
		assert.Equal(t, model.PhaseStatusComplete, res.Run.Phases[i].Status)
	}

	assert.Equal(t, 3, res.Stats.Input)
	assert.Equal(t, 1, res.Stats.Duplicates)
	assert.Equal(t, 1, res.Stats.NonPositive)
	assert.Equal(t, 1, res.Stats.Output)
	assert.Equal(t, int64(1), res.Loaded)

	require.NotNil(t, res.Report)
	assert.Equal(t, int64(1), res.Report.RecordCount)
	assert.Equal(t, []model.RegionTotal{{Region: model.RegionA, TotalSales: 20}}, res.Report.SalesByRegion)
	require.NotNil(t, res.Report.AverageSale)
	assert.InDelta(t, 20.0, *res.Report.AverageSale, 1e-9)
	assert.True(t, res.Report.Healthy())

	rows, err := st.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].OrderID)
	assert.Equal(t, int64(100), rows[0].OrderItemID)
	assert.Equal(t, model.RegionA, rows[0].Region)
	assert.InDelta(t, 19.0, rows[0].NetSale, 1e-9)

	expected := `
# HELP sales_etl_records_total Sales records seen per kind (extracted, duplicate, non_positive, loaded).
# TYPE sales_etl_records_total counter
sales_etl_records_total{kind="duplicate"} 1
sales_etl_records_total{kind="extracted"} 3
sales_etl_records_total{kind="loaded"} 1
sales_etl_records_total{kind="non_positive"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(rec.Registry(), strings.NewReader(expected), "sales_etl_records_total"))
}

func TestPipeline_Run_Idempotent(t *testing.T) {
	ctx := context.Background()
	st := newSQLite(t)
	sources := writeSources(t,
		"1,100,2,10.0,1.0\n3,300,4,2.5,1.0\n",
		"2,200,1,7.0,0\n3,301,9,9.0,0\n",
	)
	p := New(st, sources, nil)

	first, err := p.Run(ctx)
	require.NoError(t, err)
	before, err := st.Rows(ctx)
	require.NoError(t, err)

	second, err := p.Run(ctx)
	require.NoError(t, err)
	after, err := st.Rows(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first.Run.ID, second.Run.ID)
	assert.Equal(t, before, after)
	assert.Equal(t, first.Report.RecordCount, second.Report.RecordCount)
	assert.Equal(t, int64(3), second.Report.RecordCount)
}

func TestPipeline_Run_LaterLoadReplacesRow(t *testing.T) {
	ctx := context.Background()
	st := newSQLite(t)

	_, err := New(st, writeSources(t, "1,100,2,10.0,1.0\n", "2,200,1,3.0,0\n"), nil).Run(ctx)
	require.NoError(t, err)

	res, err := New(st, writeSources(t, "5,500,1,1.0,0\n", "1,101,3,4.0,0\n"), nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Report.RecordCount)

	rows, err := st.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(101), rows[0].OrderItemID)
	assert.Equal(t, model.RegionB, rows[0].Region)
	assert.InDelta(t, 12.0, rows[0].TotalSales, 1e-9)
}

func TestPipeline_Run_ExtractFailureTouchesNothing(t *testing.T) {
	st := storemocks.NewMockStore(t)
	sources := workedExample(t)
	sources[1].Path = filepath.Join(t.TempDir(), "missing.csv")

	res, err := New(st, sources, nil).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrExtraction)
	assert.Contains(t, err.Error(), "pipeline: extract")
	assert.Equal(t, model.RunStatusFailed, res.Run.Status)
	require.Len(t, res.Run.Phases, 1)
	assert.Equal(t, model.PhaseStatusFailed, res.Run.Phases[0].Status)
	st.AssertNotCalled(t, "EnsureSchema", mock.Anything)
}

func TestPipeline_Run_NonNumericIsComputationError(t *testing.T) {
	st := storemocks.NewMockStore(t)
	sources := writeSources(t, "1,100,two,10.0,1.0\n", "")

	_, err := New(st, sources, nil).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrComputation)
}

func TestPipeline_Run_SchemaFailureSkipsLoad(t *testing.T) {
	st := storemocks.NewMockStore(t)
	st.On("Table").Return("sales_data")
	st.On("EnsureSchema", mock.Anything).
		Return(model.WithKind(model.ErrSchema, errors.New("missing column net_sale"), "sqlite: check"))

	rec := metrics.New()
	res, err := New(st, workedExample(t), rec).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrSchema)
	assert.Contains(t, err.Error(), "pipeline: ensure schema")

	phase, ok := res.Run.Phase(PhaseSchema)
	require.True(t, ok)
	assert.Equal(t, model.PhaseStatusFailed, phase.Status)
	_, ok = res.Run.Phase(PhaseLoad)
	assert.False(t, ok)
	st.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)

	expected := `
# HELP sales_etl_runs_total Pipeline runs by outcome.
# TYPE sales_etl_runs_total counter
sales_etl_runs_total{status="error"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(rec.Registry(), strings.NewReader(expected), "sales_etl_runs_total"))
}

func TestPipeline_Run_LoadFailureSkipsValidate(t *testing.T) {
	st := storemocks.NewMockStore(t)
	st.On("Table").Return("sales_data")
	st.On("EnsureSchema", mock.Anything).Return(nil)
	st.On("Upsert", mock.Anything, mock.MatchedBy(func(recs []model.EnrichedSalesRecord) bool {
		return len(recs) == 1 && recs[0].OrderID == 1 && recs[0].Region == model.RegionA
	})).Return(int64(0), model.WithKind(model.ErrPersistence, errors.New("database is locked"), "sqlite: commit"))

	_, err := New(st, workedExample(t), nil).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrPersistence)
	assert.Contains(t, err.Error(), "pipeline: load")
	st.AssertNotCalled(t, "CountRecords", mock.Anything)
}

func TestPipeline_Run_ValidateFailure(t *testing.T) {
	st := storemocks.NewMockStore(t)
	st.On("Table").Return("sales_data")
	st.On("EnsureSchema", mock.Anything).Return(nil)
	st.On("Upsert", mock.Anything, mock.Anything).Return(int64(1), nil)
	st.On("CountRecords", mock.Anything).
		Return(int64(0), model.WithKind(model.ErrPersistence, errors.New("no such table"), "sqlite: count records"))

	_, err := New(st, workedExample(t), nil).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrPersistence)
	assert.Contains(t, err.Error(), "pipeline: validate")
}

func TestPipeline_Run_DuplicatesReportedNotFatal(t *testing.T) {
	st := storemocks.NewMockStore(t)
	st.On("Table").Return("sales_data")
	st.On("EnsureSchema", mock.Anything).Return(nil)
	st.On("Upsert", mock.Anything, mock.Anything).Return(int64(1), nil)
	st.On("CountRecords", mock.Anything).Return(int64(2), nil)
	st.On("TotalSalesByRegion", mock.Anything).Return([]model.RegionTotal{{Region: model.RegionA, TotalSales: 40}}, nil)
	avg := 20.0
	st.On("AverageSalesPerTransaction", mock.Anything).Return(&avg, nil)
	st.On("CheckDuplicates", mock.Anything).Return([]model.DuplicateKey{{OrderID: 1, Count: 2}}, nil)

	res, err := New(st, workedExample(t), nil).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Report.Healthy())
	assert.Equal(t, model.RunStatusComplete, res.Run.Status)
}

func TestPipeline_Prepare_DoesNotNeedStore(t *testing.T) {
	res, err := New(nil, workedExample(t), nil).Prepare(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, int64(1), res.Records[0].OrderID)
	assert.Zero(t, res.Loaded)
	assert.Nil(t, res.Report)
	assert.Len(t, res.Run.Phases, 2)
}

func TestPipeline_Run_NoStore(t *testing.T) {
	_, err := New(nil, workedExample(t), nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no store configured")
}

func TestPipeline_WrongSourceCount(t *testing.T) {
	sources := workedExample(t)[:1]
	res, err := New(nil, sources, nil).Prepare(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "need exactly 2 sources")
	assert.Equal(t, model.RunStatusFailed, res.Run.Status)
}
