package snapkv_test

import (
	"context"
	"fmt"

	"github.com/jrhy/snapkv"
)

func Example() {
	ctx := context.Background()
	db, err := snapkv.Open()
	if err != nil {
		panic(err)
	}
	defer db.Close()

	_ = db.Update(ctx, func(tx *snapkv.Tx) error {
		_ = tx.Set([]byte("a"), []byte("1"))
		return tx.Set([]byte("b"), []byte("2"))
	})
	reader, _ := db.BeginRead()
	_ = db.Update(ctx, func(tx *snapkv.Tx) error {
		_ = tx.Set([]byte("a"), []byte("3"))
		return tx.Delete([]byte("b"))
	})

	old, _ := reader.Scan(nil, nil, 0)
	_ = reader.Commit()
	for _, kv := range old {
		fmt.Printf("v1 %s=%s\n", kv.Key, kv.Value)
	}
	_ = db.View(func(tx *snapkv.Tx) error {
		kvs, _ := tx.Scan(nil, nil, 0)
		for _, kv := range kvs {
			fmt.Printf("v%d %s=%s\n", tx.Version(), kv.Key, kv.Value)
		}
		return nil
	})
	// Output:
	// v1 a=1
	// v1 b=2
	// v2 a=3
}

func ExampleWithWritePolicy() {
	ctx := context.Background()
	db, _ := snapkv.Open(snapkv.WithWritePolicy(snapkv.FailFast))
	defer db.Close()

	first, _ := db.BeginWrite(ctx)
	_, err := db.BeginWrite(ctx)
	fmt.Println(err)
	_ = first.Rollback()
	// Output:
	// snapkv: write contention
}

func ExampleTx_Putc() {
	db, _ := snapkv.Open()
	defer db.Close()
	err := db.Update(context.Background(), func(tx *snapkv.Tx) error {
		if err := tx.Putc([]byte("lock"), []byte("owner-1"), nil); err != nil {
			return err
		}
		return tx.Putc([]byte("lock"), []byte("owner-2"), nil)
	})
	fmt.Println(err)
	// Output:
	// snapkv: value not the expected value
}
