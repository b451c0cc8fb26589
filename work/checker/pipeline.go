package checker

import (
	"context"
	"time"

	"iptv-check/work/classifier"
	"iptv-check/work/logger"
	"iptv-check/work/probe"
	"iptv-check/work/types"
	"iptv-check/work/utils"
)

const (
	ReasonNoFrame     = "no frame"
	ReasonErrorScreen = "error screen"
)

// Pipeline runs capture and, when a classifier is set, the content check
// for one channel. It implements scheduler.Checker.
type Pipeline struct {
	engine     *probe.Engine
	classifier *classifier.Classifier
	timeout    time.Duration
	obfuscate  bool
}

// NewPipeline creates a Pipeline. cls may be nil, in which case a
// reachable capture is enough for Online.
func NewPipeline(engine *probe.Engine, cls *classifier.Classifier, timeout time.Duration, obfuscate bool) *Pipeline {
	return &Pipeline{engine: engine, classifier: cls, timeout: timeout, obfuscate: obfuscate}
}

// Check probes ch once. The capture is always removed before returning.
func (p *Pipeline) Check(ctx context.Context, index int, ch types.ChannelRecord) types.ProbeResult {
	start := time.Now()
	res := types.ProbeResult{Index: index, Channel: ch}

	outcome := p.engine.Probe(ctx, ch.URL, p.timeout)
	defer outcome.Artifact.Cleanup()

	res.Connectivity = outcome.Connectivity
	res.Reason = outcome.Reason

	switch {
	case outcome.Connectivity != types.Reachable:
		res.Classification = types.OfflineNetwork

	case p.classifier == nil:
		res.Classification = types.Online

	default:
		verdict, err := p.classifier.Classify(ctx, outcome.Artifact.Path)
		res.Health = verdict.Health
		switch {
		case err != nil && ctx.Err() != nil:
			res.Classification = types.OfflineNetwork
			res.Reason = probe.ReasonInterrupted
		case err != nil:
			res.Classification = types.OfflineNetwork
			res.Reason = ReasonNoFrame
		default:
			valid := verdict.ContentValid
			res.ContentValid = &valid
			if valid {
				res.Classification = types.Online
			} else {
				res.Classification = types.OfflineBadLogin
				res.Reason = ReasonErrorScreen
			}
		}
	}

	res.Duration = time.Since(start)
	logger.Debug("{checker - Check} #%d %s: %s (%s) in %s",
		index, utils.LogURLWithFlag(p.obfuscate, ch.URL), res.Classification.Label(), res.Reason, res.Duration.Round(time.Millisecond))
	return res
}
