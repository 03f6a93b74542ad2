// Package ffmpeg renders a mux plan as the equivalent ffmpeg stream-copy
// command. Dry runs print it so a plan can be reproduced or compared with
// ffmpeg's own muxers; nothing here runs ffmpeg.
package ffmpeg
