// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"fmt"
	"strings"
)

// RenderNeutralExports renders a dialect-neutral, POSIX-compatible script
// containing only export statements. It is the degraded output used when a
// requested dialect has no adapter: the user still gets a usable variable
// environment even though hook and profile bodies (which are dialect
// specific) cannot run. Manifest vars keep shell expansion; engine
// bookkeeping vars are spliced literally.
func RenderNeutralExports(manifestVars, literalVars [][2]string) string {
	var b strings.Builder
	for _, kv := range manifestVars {
		fmt.Fprintf(&b, "export %s=%s\n", kv[0], quoteExpandPOSIX(kv[1]))
	}
	for _, kv := range literalVars {
		fmt.Fprintf(&b, "export %s=%s\n", kv[0], quotePOSIX(kv[1]))
	}
	return b.String()
}
