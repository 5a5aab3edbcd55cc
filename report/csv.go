package report

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rustyeddy/discipline/rules"
)

// ViolationsHeader is the first line of a violations export.
const ViolationsHeader = "trade_index,violation_type,detail"

// WriteViolationsCSV writes one line per violation. Type and detail are always
// quoted, with embedded quotes doubled.
func WriteViolationsCSV(w io.Writer, vs []rules.Violation) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(ViolationsHeader + "\n")
	for _, v := range vs {
		bw.WriteString(strconv.Itoa(v.TradeIndex))
		bw.WriteByte(',')
		bw.WriteString(quote(v.Type))
		bw.WriteByte(',')
		bw.WriteString(quote(v.Detail))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// SaveViolationsCSV writes the export to path.
func SaveViolationsCSV(path string, vs []rules.Violation) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteViolationsCSV(f, vs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
