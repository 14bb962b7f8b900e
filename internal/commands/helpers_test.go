package commands

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/awsinventory/internal/analyzer"
	"github.com/ppiankov/awsinventory/internal/aws"
	"github.com/ppiankov/awsinventory/internal/collector"
	"github.com/ppiankov/awsinventory/internal/config"
	"github.com/ppiankov/awsinventory/internal/record"
	"github.com/ppiankov/awsinventory/internal/scope"
)

func TestEnhanceError_NoCredentials(t *testing.T) {
	err := enhanceError("test", fmt.Errorf("failed to refresh cached credentials, no EC2 IMDS role found"))
	if !strings.Contains(err.Error(), "hint:") {
		t.Fatal("expected hint for missing credentials")
	}
	if !strings.Contains(err.Error(), "AWS_PROFILE") {
		t.Fatal("expected hint to mention AWS_PROFILE")
	}
}

func TestEnhanceError_ExpiredToken(t *testing.T) {
	err := enhanceError("test", fmt.Errorf("sts: %w", &smithy.GenericAPIError{Code: "ExpiredToken"}))
	if !strings.Contains(err.Error(), "hint:") {
		t.Fatal("expected hint for ExpiredToken")
	}
}

func TestEnhanceError_AccessDenied(t *testing.T) {
	err := enhanceError("test", &smithy.GenericAPIError{Code: "AccessDenied"})
	if !strings.Contains(err.Error(), "awsinventory init") {
		t.Fatal("expected hint pointing at the IAM policy")
	}
}

func TestEnhanceError_Throttling(t *testing.T) {
	err := enhanceError("test", &smithy.GenericAPIError{Code: "ThrottlingException"})
	if !strings.Contains(err.Error(), "hint:") {
		t.Fatal("expected hint for Throttling")
	}
}

func TestEnhanceError_GenericError(t *testing.T) {
	err := enhanceError("do something", fmt.Errorf("random error"))
	if strings.Contains(err.Error(), "hint:") {
		t.Fatal("expected no hint for generic error")
	}
	if !strings.Contains(err.Error(), "do something") {
		t.Fatal("expected action in error message")
	}
}

func TestComputeTargetHash(t *testing.T) {
	hash1 := computeTargetHash([]string{"111111111111", "222222222222"})
	hash2 := computeTargetHash([]string{"222222222222", "111111111111"})
	hash3 := computeTargetHash([]string{"111111111111"})

	if hash1 != hash2 {
		t.Fatal("account order should not change the hash")
	}
	if hash1 == hash3 {
		t.Fatal("different input should produce different hash")
	}
	if !strings.HasPrefix(hash1, "sha256:") {
		t.Fatalf("expected sha256: prefix, got %s", hash1)
	}
}

func TestMetricOptions(t *testing.T) {
	opts, err := metricOptions(map[string]config.MetricWindow{
		"s3": {Stat: "Maximum", Window: "72h"},
	})
	require.NoError(t, err)
	w := opts.WindowFor(aws.KindS3)
	assert.Equal(t, "Maximum", w.Stat)
	assert.Equal(t, 24*time.Hour, w.Period)
	assert.Equal(t, 72*time.Hour, w.Lookback)

	_, err = metricOptions(map[string]config.MetricWindow{"lambda": {Stat: "Sum"}})
	assert.Error(t, err)

	_, err = metricOptions(map[string]config.MetricWindow{"rds": {Period: "hourly"}})
	assert.Error(t, err)
}

func TestParseFormats(t *testing.T) {
	formats, err := parseFormats([]string{"CSV", " xlsx", "csv"})
	require.NoError(t, err)
	assert.Equal(t, []string{"csv", "xlsx"}, formats)

	_, err = parseFormats([]string{"sarif"})
	assert.Error(t, err)

	_, err = parseFormats(nil)
	assert.Error(t, err)
}

func scopeContext(index int, id string, kind string, sizes ...float64) *collector.ScopeContext {
	sc := &collector.ScopeContext{
		Scope:   scope.Scope{Index: index, ID: id, Alias: "alias-" + id},
		Records: map[string][]record.Record{},
	}
	for i, size := range sizes {
		r := record.New()
		r.Set(record.FieldAccountID, record.String(id))
		r.Set(record.FieldAccountAlias, record.String("alias-"+id))
		r.Set(record.FieldRegion, record.String("us-east-1"))
		r.Set(record.FieldResourceID, record.String(fmt.Sprintf("%s-%d", id, i)))
		record.SetSizes(&r, record.FromGiB(size))
		sc.Records[kind] = append(sc.Records[kind], r)
	}
	return sc
}

func TestBuildTablesAndSummary(t *testing.T) {
	scopes := []*collector.ScopeContext{
		scopeContext(0, "111111111111", aws.KindEBS, 10, 20),
		scopeContext(1, "222222222222", aws.KindEBS, 5),
	}
	kinds := []string{aws.KindEC2, aws.KindEBS}

	tables := buildTables(kinds, scopes)
	require.Len(t, tables, 2)
	assert.Equal(t, aws.KindEC2, tables[0].Kind)
	assert.Zero(t, tables[0].Len())
	assert.Equal(t, 3, tables[1].Len())
	assert.Len(t, nonEmpty(tables), 1)

	// Scope order is kept inside the merged table
	assert.Equal(t, "111111111111", tables[1].Records[0].Text(record.FieldAccountID))
	assert.Equal(t, "222222222222", tables[1].Records[2].Text(record.FieldAccountID))

	rows, err := analyzer.Analyze(scopeRefs(scopes), tables)
	require.NoError(t, err)

	totals := kindTotals(rows)
	require.Len(t, totals, 1)
	assert.Equal(t, aws.KindEBS, totals[0].Type)
	assert.Equal(t, 3, totals[0].Count)
	assert.Equal(t, 35.0, totals[0].SizeGiB)
}

func TestScopeRefs(t *testing.T) {
	refs := scopeRefs([]*collector.ScopeContext{scopeContext(0, "111111111111", aws.KindEC2)})
	require.Len(t, refs, 1)
	assert.Equal(t, "alias-111111111111 (111111111111)", refs[0].Label())
}
