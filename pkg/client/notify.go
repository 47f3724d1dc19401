// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
)

// NotifyClient lets a running agent session signal a state transition back
// to the daemon directly, rather than relying solely on the poller noticing
// idle/exit (spec.md §7's notify.done/notify.blocked/notify.error signal
// events).
//
// Access this client through [Client.Notify]:
//
//	_, err := client.Notify.Send(ctx, sessionID, "build complete", client.NotifyDone)
type NotifyClient struct {
	c *Client
}

// Send emits a notify.* event for sessionID.
//
//   - [NotifyDone]: the session finished its assigned work
//   - [NotifyBlocked]: the session is waiting on something it can't resolve
//   - [NotifyError]: the session hit an error it can't recover from
func (n *NotifyClient) Send(ctx context.Context, sessionID, message string, notifyType NotifyType) (*NotifyResponse, error) {
	req := NotifyRequest{
		SessionID: sessionID,
		Message:   message,
		Type:      string(notifyType),
	}

	data, err := n.c.postJSON(ctx, "/api/v1/notify", req)
	if err != nil {
		return nil, err
	}

	var resp NotifyResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse notify response: %w", err)
	}

	return &resp, nil
}
