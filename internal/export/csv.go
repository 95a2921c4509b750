package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/livepoll/backend/internal/results"
)

// Row is one (question, option, votes) line of a flat export.
type Row struct {
	Question string
	Option   string
	Votes    int
}

// Rows flattens results into one row per option, in question then option order.
func Rows(res *results.SessionResults) []Row {
	var rows []Row
	for _, q := range res.Questions {
		for _, o := range q.Options {
			rows = append(rows, Row{Question: q.Text, Option: o.Text, Votes: o.Count})
		}
	}
	return rows
}

// WriteCSV writes the flat rows with a question,option,votes header.
func WriteCSV(w io.Writer, res *results.SessionResults) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"question", "option", "votes"}); err != nil {
		return err
	}
	for _, r := range Rows(res) {
		if err := cw.Write([]string{r.Question, r.Option, strconv.Itoa(r.Votes)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
