package jobstore

// processorFields are written by the external processor, which may store
// them as numbers or booleans. They are read back as strings.
var processorFields = []string{"message", "severity", "urban_pct"}
