// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"fmt"
)

// NotificationType represents the type of a notification message.
type NotificationType int

// NotificationCallback is used for a caller to provide a callback for
// notifications about various pool events.
type NotificationCallback func(*Notification)

// Constants for the type of a notification message.
const (
	// NTTxReady indicates a transaction became ready for inclusion,
	// either on submission or by promotion from the pending set.
	NTTxReady NotificationType = iota

	// NTTxPending indicates a submitted transaction is waiting for
	// missing markers.
	NTTxPending

	// NTTxRemoved indicates a transaction left the pool without being
	// included: it was replaced, invalidated, or could not be promoted.
	NTTxRemoved

	// NTTxPruned indicates a transaction left the pool because its
	// markers were satisfied on chain.
	NTTxPruned
)

// notificationTypeStrings is a map of notification types back to their constant
// names for pretty printing.
var notificationTypeStrings = map[NotificationType]string{
	NTTxReady:   "NTTxReady",
	NTTxPending: "NTTxPending",
	NTTxRemoved: "NTTxRemoved",
	NTTxPruned:  "NTTxPruned",
}

// String returns the NotificationType in human-readable form.
func (n NotificationType) String() string {
	if s, ok := notificationTypeStrings[n]; ok {
		return s
	}
	return fmt.Sprintf("Unknown Notification Type (%d)", int(n))
}

// Notification defines notification that is sent to the caller via the
// callbacks registered with Subscribe.  Data always holds the affected
// *PoolTransaction.
type Notification struct {
	Type NotificationType
	Data *PoolTransaction
}

// Subscribe registers a callback for pool notifications.  Callbacks run
// synchronously after the pool lock has been released.
func (p *TxPool) Subscribe(callback NotificationCallback) {
	p.notificationsLock.Lock()
	p.notifications = append(p.notifications, callback)
	p.notificationsLock.Unlock()
}

// sendNotification delivers a notification to every subscriber.
func (p *TxPool) sendNotification(typ NotificationType, tx *PoolTransaction) {
	n := Notification{Type: typ, Data: tx}
	p.notificationsLock.RLock()
	for _, callback := range p.notifications {
		callback(&n)
	}
	p.notificationsLock.RUnlock()
}

// sendNotifications delivers one notification per transaction.
func (p *TxPool) sendNotifications(typ NotificationType, txs []*PoolTransaction) {
	for _, tx := range txs {
		p.sendNotification(typ, tx)
	}
}
