package cranklib

import "context"

// processRetries reconciles in-flight transactions older than the
// confirmation window against ledger status. Confirmed transactions leave the
// books; failed or never-landed ones are requeued at the current slot with a
// clean failure count, since a landing failure says nothing about whether the
// transaction can be rebuilt. Status query errors leave the record untouched
// for the next round.
func (e *Executor) processRetries(ctx context.Context, slot uint64) (confirmed, retriable []Address) {
	checkable := e.state.checkable(slot)
	if len(checkable) == 0 {
		return nil, nil
	}
	for _, c := range checkable {
		status, err := e.statuses.SignatureStatus(ctx, c.sig)
		switch {
		case err != nil:
			e.log.Warning("status query for %s: %v", c.sig, err)
		case status == nil:
			retriable = append(retriable, c.ref)
		case status.Err != nil:
			e.log.Info("transaction %s landed with error: %v", c.sig, status.Err)
			retriable = append(retriable, c.ref)
		default:
			confirmed = append(confirmed, c.ref)
		}
	}
	e.state.applyRetries(confirmed, retriable, slot)
	return confirmed, retriable
}
