package contracts

import _ "embed"

//go:embed signup.yaml
var SignupYAML []byte
