// ezvis - EZproxy access log analytics
//
// ezvis imports EZproxy access logs into SQLite and serves hourly traffic,
// bandwidth, host, country, status and browser breakdowns as JSON.
package main

import (
	"os"

	"ezvis/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
