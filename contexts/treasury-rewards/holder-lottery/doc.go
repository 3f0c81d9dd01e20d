// Package holderlottery runs the periodic holder lottery for the treasury.
//
// Every window the module claims accrued creator fees into the treasury
// wallet, measures what actually settled, draws one token holder weighted by
// balance and pays them. Exactly one distribution record is written per
// window; the unique window key on the record store is what makes repeated
// and overlapping triggers safe.
package holderlottery
