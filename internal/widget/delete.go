package widget

import "context"

// OpenDeleteModal records the row's delete intent in the single pending
// slot and opens the confirmation modal. A second open while the modal is
// already up simply overwrites the slot; only one delete can be pending.
func (c *Controller) OpenDeleteModal(rowID string) {
	row := c.page.FindRow(rowID)
	if row == nil {
		return
	}
	c.pending = &pendingDelete{url: row.DeleteURL, rowID: row.ID}
	c.page.ModalOpen = true
	c.page.Focused = FieldConfirmDelete
}

// CancelDelete closes the modal and clears the pending slot without any
// network call. Bind it to the cancel control, the close control, and
// backdrop clicks alike.
func (c *Controller) CancelDelete() {
	c.pending = nil
	c.page.ModalOpen = false
	c.page.Focused = FieldNone
}

// ConfirmDelete posts to the recorded delete URL. On success the row is
// removed in place, no reload. The triggering control is re-enabled and
// the pending slot cleared whatever the outcome.
func (c *Controller) ConfirmDelete(ctx context.Context) {
	pending := c.pending
	if pending == nil {
		return
	}
	c.pending = nil
	c.page.Banner = ""

	row := c.page.FindRow(pending.rowID)
	if row != nil {
		row.DeleteDisabled = true
	}
	defer func() {
		if row := c.page.FindRow(pending.rowID); row != nil {
			row.DeleteDisabled = false
		}
	}()

	resp, err := c.post(ctx, pending.url, nil)
	if err != nil {
		c.page.Banner = msgNetworkError
		return
	}
	if !resp.Success {
		if resp.Error != "" {
			c.page.Banner = resp.Error
		} else {
			c.page.Banner = msgDeleteFailed
		}
		return
	}

	c.page.removeRow(pending.rowID)
	c.page.ModalOpen = false
	c.page.Focused = FieldNone
}
