package corelog

import "testing"

func TestNoopDiscardsEverything(t *testing.T) {
	log := Noop()
	// Exercised purely for panics; noop has nothing observable to assert.
	log.Debug("debug", "a", 1)
	log.Info("info", "b", 2)
	log.Warn("warn", "c", 3)
	log.Error("error", "d", 4)
}
