package settings

const (
	CmdName = "adaprof"

	DefaultReportFile = "adaprof-report.json"
	DefaultFoldedFile = "adaprof.folded"
	DefaultPprofFile  = "adaprof.pb.gz"
)
