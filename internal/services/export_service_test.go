package services

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alimgiray/ideabase/internal/models"
	"github.com/alimgiray/ideabase/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportWorkbook(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	// more rows than one export page
	base := time.Now()
	for i := 0; i < exportPageSize+5; i++ {
		_, _, err := f.projects.Upsert(ctx, testutil.Candidate("o", fmt.Sprintf("r%03d", i), i, base.Add(-time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}
	first, err := f.projects.GetByName(ctx, "o", "r000")
	require.NoError(t, err)
	_, _, err = f.insights.GetOrMarkPending(ctx, first.ID, "en")
	require.NoError(t, err)
	require.NoError(t, f.insights.Complete(ctx, first.ID, "en", models.InsightFields{BusinessValue: "Saves time"}, "gpt-4"))

	var buf bytes.Buffer
	service := NewExportService(f.projects, f.insights)
	require.NoError(t, service.WriteWorkbook(ctx, &buf, models.ProjectFilter{}, "en"))

	workbook, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer workbook.Close()

	rows, err := workbook.GetRows(projectsSheet)
	require.NoError(t, err)
	require.Len(t, rows, exportPageSize+6)
	assert.Equal(t, "Project", rows[0][0])
	assert.Equal(t, "o/r000", rows[1][0])
	assert.Equal(t, "completed", rows[1][9])
	assert.Equal(t, "Saves time", rows[1][10])
	assert.Equal(t, fmt.Sprintf("o/r%03d", exportPageSize+4), rows[len(rows)-1][0])

	languages, err := workbook.GetRows(languagesSheet)
	require.NoError(t, err)
	require.Len(t, languages, 2)
	assert.Equal(t, []string{"Go", fmt.Sprint(exportPageSize + 5)}, languages[1])
}
