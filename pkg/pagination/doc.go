// Package pagination implements the controller that grows a deduplicated
// master collection from a paginated remote list, one page at a time.
//
// States:
//
//	Idle ──trigger──▶ Fetching ──success──▶ Idle (offset += limit)
//	                     │          └─────▶ Exhausted (short page, nothing new, total reached)
//	                     └──failure──▶ Error ──recovery delay──▶ Idle
//	                                     └────manual retry────▶ Fetching
//
// Exhausted is terminal until Reset, which starts a new epoch: offset 0,
// empty collection, and any fetch still in flight from the previous epoch is
// cancelled and its result discarded on arrival.
//
// At most one fetch is in flight. All transitions run under the controller's
// mutex, so page results are applied strictly in issue order.
//
// Example usage:
//
//	ctrl, err := pagination.NewController(catalogClient, pagination.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer ctrl.Close()
//	done, started := ctrl.Trigger()
//	if started {
//		<-done
//	}
//	records := ctrl.Records()
package pagination
