// logging.go - structured diagnostics for the package.
//
// The teacher logs malformed register writes with the stdlib log package
// (audio_chip.go's HandleRegisterWrite default case). doismellburning/samoyed
// carries github.com/charmbracelet/log for the same kind of ambient
// diagnostic logging; we adopt it package-wide so bank-load and
// configuration diagnostics are structured and leveled rather than bare
// Printf lines.

package adlmidi

import (
	"os"

	"github.com/charmbracelet/log"
)

var logger = log.NewWithOptions(os.Stderr, log.Options{
	Prefix: "adlmidi",
})

// SetLogger overrides the package-wide logger. Host applications that want
// their own sink (or want the core silenced) call this once at startup.
func SetLogger(l *log.Logger) {
	if l != nil {
		logger = l
	}
}

func logBadRegister(addr uint16) {
	logger.Warn("invalid register address", "addr", addr)
}

func logBankLoad(path string, instruments int) {
	logger.Info("bank loaded", "path", path, "instruments", instruments)
}

func logVoiceDropped(channel, key int) {
	logger.Debug("note dropped, no voice available", "channel", channel, "key", key)
}

func logEmulatorFallback(requested, used string) {
	logger.Warn("emulator switch failed, keeping previous emulator", "requested", requested, "kept", used)
}
