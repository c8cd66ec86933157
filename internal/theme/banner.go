package theme

import (
	"fmt"
)

// Banner returns the CLI banner.
func Banner() string {
	const cyan = "\033[36m"
	const magenta = "\033[35m"
	const reset = "\033[0m"

	return "" +
		magenta + "  ~ TWEETHARVEST ~\n" + reset +
		cyan + "  search  ->  record  ->  store\n" + reset +
		"  keyword collection for the v1.1 search API\n"
}

// PrintBanner prints the banner to stdout.
func PrintBanner() {
	fmt.Print(Banner())
}
