package export

// Dataset defines tabular export content. Rows are keyed by header.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// FromRecords builds a dataset from positional records. Short records leave
// the trailing columns empty and extra fields are ignored.
func FromRecords(headers []string, records [][]string) Dataset {
	out := Dataset{Headers: headers, Rows: make([]map[string]string, 0, len(records))}
	for _, record := range records {
		row := make(map[string]string, len(headers))
		for i, header := range headers {
			if i < len(record) {
				row[header] = record[i]
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// Records returns the rows in header order.
func (d Dataset) Records() [][]string {
	out := make([][]string, 0, len(d.Rows))
	for _, row := range d.Rows {
		record := make([]string, len(d.Headers))
		for i, header := range d.Headers {
			record[i] = row[header]
		}
		out = append(out, record)
	}
	return out
}
