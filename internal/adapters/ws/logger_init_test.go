package ws_test

import "github.com/okian/combatpower/pkg/logger"

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}
