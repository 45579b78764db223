// Parses flags and configures logging for husk.
//
// The root command accepts the following flags:
//
//	-q, --quiet     Log errors only.
//	-v, --verbose   Log progress.
//	-d, --debug     Enable debug output.
//
// Flags override build-time defaults set via linker flags. After parsing, the
// global logger is reconfigured to reflect the final level before the
// selected subcommand runs. Run flags may also be given through HUSK_*
// environment variables or the JSON configuration file.
package cli
