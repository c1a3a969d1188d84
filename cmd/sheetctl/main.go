// Command sheetctl runs the workbook codec on local files: export a
// template to .xlsx, import a filled-in workbook back to JSON, derive
// filters from records, and manage the optional database source.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
