package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/client"
	"github.com/meszmate/ews-go/complex"
)

func cmdFolder(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "folder [folder]",
		Short: "Show the counters of a folder (default inbox)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.newClient(cmd)
			if err != nil {
				return err
			}
			id := client.WellKnown(ews.FolderInbox)
			if len(args) == 1 {
				id = parseFolder(args[0])
			}

			ctx := cmd.Context()
			f, err := client.BindToFolder(ctx, c, id, client.NewPropertySet(client.Default))
			if err != nil {
				return err
			}
			name, err := f.DisplayName(ctx)
			if err != nil {
				return err
			}
			total, err := f.TotalCount(ctx)
			if err != nil {
				return err
			}
			unread, err := f.UnreadCount(ctx)
			if err != nil {
				return err
			}
			children, err := f.ChildFolderCount(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "name:     %s\n", name)
			fmt.Fprintf(out, "total:    %d\n", total)
			fmt.Fprintf(out, "unread:   %d\n", unread)
			fmt.Fprintf(out, "children: %d\n", children)
			return nil
		},
	}
}

func cmdFind(a *app) *cobra.Command {
	var (
		limit  int
		offset int
		deep   bool
	)
	c := &cobra.Command{
		Use:   "find [folder]",
		Short: "List the items of a folder (default inbox)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.newClient(cmd)
			if err != nil {
				return err
			}
			folder := client.WellKnown(ews.FolderInbox)
			if len(args) == 1 {
				folder = parseFolder(args[0])
			}
			view := client.ItemView{
				PageSize: limit,
				Offset:   offset,
				Shape:    client.NewPropertySet(client.Default),
			}
			if deep {
				view.Traversal = client.Deep
			}

			ctx := cmd.Context()
			res, err := svc.FindItems(ctx, folder, nil, view)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, it := range res.Items {
				id, _ := it.ID()
				subject, err := it.Subject(ctx)
				if err != nil {
					subject = "-"
				}
				fmt.Fprintf(out, "%s\t%s\t%s\n", it.Kind(), id.ID, subject)
			}
			fmt.Fprintf(out, "%d of %d item(s)", len(res.Items), res.TotalCount)
			if res.MoreAvailable {
				fmt.Fprintf(out, ", next offset %d", res.NextOffset)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	flags := c.Flags()
	flags.IntVar(&limit, "limit", 50, "Maximum number of items")
	flags.IntVar(&offset, "offset", 0, "Index of the first item")
	flags.BoolVar(&deep, "deep", false, "Search subfolders too")
	return c
}

func cmdGetItem(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get-item <id>...",
		Short: "Fetch items by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.newClient(cmd)
			if err != nil {
				return err
			}
			ids := make([]complex.ID, len(args))
			for i, arg := range args {
				ids[i] = complex.ID{ID: arg}
			}

			ctx := cmd.Context()
			resp, err := svc.GetItems(ctx, ids, client.NewPropertySet(client.Default), ews.ReturnErrors)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i := 0; i < resp.Len(); i++ {
				res := resp.At(i)
				if !res.Succeeded() {
					fmt.Fprintf(out, "%s\terror\t%v\n", args[i], res.Err(i))
					continue
				}
				for _, it := range res.Items {
					subject, err := it.Subject(ctx)
					if err != nil {
						subject = "-"
					}
					fmt.Fprintf(out, "%s\t%s\t%s\n", args[i], it.Kind(), subject)
				}
			}
			if resp.OverallResult() == ews.ResponseClassError {
				return errors.Errorf("%d item(s) failed", len(resp.Errors()))
			}
			return nil
		},
	}
}
