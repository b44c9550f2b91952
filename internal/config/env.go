package config

import "strings"

// envKeyReplacer maps nested keys to env names: control.tolerance_f -> HOTTUB_CONTROL_TOLERANCE_F.
var envKeyReplacer = strings.NewReplacer(".", "_")
