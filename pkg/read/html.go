package read

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tabular/pkg/backend"
)

// decodeHTML extracts one table element from an HTML document. The selector
// defaults to the document's first <table>. Header names come from the
// table's <th> cells; without any, names are synthesized positionally. Rows
// whose <td> count does not match the header width are skipped and counted.
func decodeHTML(data []byte, selector string) (*backend.Columns, int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("read: parse html: %w", err)
	}

	sel := selector
	if strings.TrimSpace(sel) == "" {
		sel = "table"
	}
	tbl := doc.Find(sel).First()
	if tbl.Length() == 0 {
		return nil, 0, fmt.Errorf("read: no table element matches %q", sel)
	}

	var (
		headers []string
		rows    [][]string
	)
	tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if headers == nil {
			if ths := tr.Find("th"); ths.Length() > 0 {
				ths.Each(func(_ int, th *goquery.Selection) {
					headers = append(headers, strings.TrimSpace(th.Text()))
				})
				return
			}
		}
		var cells []string
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(td.Text()))
		})
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	})

	if headers == nil {
		// Headerless table: synthesize names from the first row's width.
		if len(rows) == 0 {
			return nil, 0, fmt.Errorf("read: table element matching %q has no rows", sel)
		}
		for i := range rows[0] {
			headers = append(headers, fmt.Sprintf("column_%d", i))
		}
	}

	aligned := rows[:0]
	skipped := 0
	for _, row := range rows {
		if len(row) != len(headers) {
			skipped++
			continue
		}
		aligned = append(aligned, row)
	}

	cols, err := columnsFromRows(headers, aligned)
	if err != nil {
		return nil, 0, err
	}
	return cols, skipped, nil
}
