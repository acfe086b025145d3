package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ilex/wad-go/pkg/keys"
)

// Cipher cache to avoid recreating AES ciphers for the same key
var (
	cipherCache   = make(map[[16]byte]cipher.Block)
	cipherCacheMu sync.RWMutex
)

func getCachedCipher(key []byte) (cipher.Block, error) {
	if len(key) != 16 {
		return nil, fmt.Errorf("key must be 16 bytes, got %d", len(key))
	}

	var keyArr [16]byte
	copy(keyArr[:], key)

	cipherCacheMu.RLock()
	block, ok := cipherCache[keyArr]
	cipherCacheMu.RUnlock()
	if ok {
		return block, nil
	}

	cipherCacheMu.Lock()
	defer cipherCacheMu.Unlock()

	// Double-check after acquiring write lock
	if block, ok = cipherCache[keyArr]; ok {
		return block, nil
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	cipherCache[keyArr] = block
	return block, nil
}

// titleIDToIV forms the Title Key IV: the 8-byte Title ID zero-padded to a block.
func titleIDToIV(titleID [8]byte) []byte {
	iv := make([]byte, 16)
	copy(iv, titleID[:])
	return iv
}

// indexToIV forms the content IV: the big-endian content index zero-padded to a
// block. The index is used here, not the Content ID; mixing these up produces
// output that only fails at hash verification.
func indexToIV(index uint16) []byte {
	iv := make([]byte, 16)
	binary.BigEndian.PutUint16(iv, index)
	return iv
}

// zeroPad returns data extended with zero bytes to the next multiple of the AES
// block size. Wii content uses zero padding throughout, never PKCS#7.
func zeroPad(data []byte) []byte {
	padded := len(data)
	if padded%aes.BlockSize != 0 {
		padded += aes.BlockSize - padded%aes.BlockSize
	}
	out := make([]byte, padded)
	copy(out, data)
	return out
}

// DecryptTitleKey unwraps an encrypted Title Key using the common key selected
// by the Ticket's common key index and dev status.
func DecryptTitleKey(titleKeyEnc [16]byte, commonKeyIndex uint8, titleID [8]byte, isDev bool) ([16]byte, error) {
	var titleKey [16]byte
	commonKey, err := keys.CommonKey(commonKeyIndex, isDev)
	if err != nil {
		return titleKey, err
	}
	block, err := getCachedCipher(commonKey)
	if err != nil {
		return titleKey, err
	}
	cipher.NewCBCDecrypter(block, titleIDToIV(titleID)).CryptBlocks(titleKey[:], titleKeyEnc[:])
	return titleKey, nil
}

// EncryptTitleKey wraps a decrypted Title Key using the common key selected by
// the Ticket's common key index and dev status.
func EncryptTitleKey(titleKeyDec [16]byte, commonKeyIndex uint8, titleID [8]byte, isDev bool) ([16]byte, error) {
	var titleKey [16]byte
	commonKey, err := keys.CommonKey(commonKeyIndex, isDev)
	if err != nil {
		return titleKey, err
	}
	block, err := getCachedCipher(commonKey)
	if err != nil {
		return titleKey, err
	}
	cipher.NewCBCEncrypter(block, titleIDToIV(titleID)).CryptBlocks(titleKey[:], titleKeyDec[:])
	return titleKey, nil
}

// DecryptContent decrypts a content blob with the given Title Key. The data
// length must already be block-aligned; the caller truncates the result to the
// content's declared size before hashing.
func DecryptContent(data []byte, titleKey [16]byte, index uint16) ([]byte, error) {
	if len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("content length %d is not block-aligned", len(data))
	}
	block, err := getCachedCipher(titleKey[:])
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, indexToIV(index)).CryptBlocks(out, data)
	return out, nil
}

// EncryptContent encrypts a content blob with the given Title Key, zero-padding
// it to the block size first.
func EncryptContent(data []byte, titleKey [16]byte, index uint16) ([]byte, error) {
	block, err := getCachedCipher(titleKey[:])
	if err != nil {
		return nil, err
	}
	padded := zeroPad(data)
	cipher.NewCBCEncrypter(block, indexToIV(index)).CryptBlocks(padded, padded)
	return padded, nil
}
