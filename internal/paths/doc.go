// Provides platform-appropriate paths for husk.
//
// Sandbox roots live under the XDG runtime directory on Linux, which is
// typically a per-user tmpfs that is cleared at logout. The configuration
// file follows the XDG config convention. The program name "husk" is used as
// the subdirectory under each base path.
package paths
