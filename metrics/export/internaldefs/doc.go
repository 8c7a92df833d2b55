// Package internaldefs is the single table of metric names, help strings and
// latency bucket bounds. The Prometheus and OTel exporters both read it, so a
// counter added to the engine is published under one name everywhere.
package internaldefs
