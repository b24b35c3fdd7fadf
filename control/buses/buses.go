// Package buses registers every bundled control bus with the default
// registry. Import it for the side effect:
//
//	import _ "github.com/frameflow/frameflow/control/buses"
package buses

import (
	_ "github.com/frameflow/frameflow/control/channel"
	_ "github.com/frameflow/frameflow/control/nats"
)
